// Package sniffer detects the shape of an exchange export: its delimiter,
// its header row and which column plays which role.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

const utf8BOM = "\ufeff"

// FileConfig holds the detected configuration of a delimited export
type FileConfig struct {
	Delimiter   rune       // The field delimiter (';', '\t', ',')
	SkipLines   int        // Blank lines before the header
	Headers     []string   // Header names, trimmed
	Fingerprint string     // SHA256 hash of normalized headers
	SampleRows  [][]string // First few data rows for preview
}

// Column roles of the supported exchange layout.
const (
	RoleUserID    = "user_id"
	RoleTime      = "utc_time"
	RoleAccount   = "account"
	RoleOperation = "operation"
	RoleCoin      = "coin"
	RoleChange    = "change"
	RoleRemark    = "remark"
)

// Layout maps column roles to header names.
type Layout struct {
	UserID    string
	Time      string
	Account   string
	Operation string
	Coin      string
	Change    string
	Remark    string
}

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("could not find data headers")
)

// roleKeywords lists accepted header spellings per role, most specific first.
var roleKeywords = []struct {
	role     string
	keywords []string
}{
	{RoleUserID, []string{"user_id", "user id", "userid", "uid"}},
	{RoleTime, []string{"utc_time", "utc time", "date(utc)", "timestamp", "time", "date"}},
	{RoleAccount, []string{"account", "wallet"}},
	{RoleOperation, []string{"operation", "type", "transaction type"}},
	{RoleCoin, []string{"coin", "asset", "currency", "symbol"}},
	{RoleChange, []string{"change", "amount", "quantity", "qty"}},
	{RoleRemark, []string{"remark", "note", "comment", "description"}},
}

// DetectDelimiter picks the delimiter from the header line. ';' wins over
// tab, tab wins over ','.
func DetectDelimiter(headerLine string) rune {
	switch {
	case strings.ContainsRune(headerLine, ';'):
		return ';'
	case strings.ContainsRune(headerLine, '\t'):
		return '\t'
	default:
		return ','
	}
}

// DetectConfig analyzes an export and returns its configuration. The first
// non-blank line is the header.
func DetectConfig(data []byte) (*FileConfig, error) {
	text := strings.TrimPrefix(string(data), utf8BOM)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(text, "\n")
	skipLines := 0
	for skipLines < len(lines) && strings.TrimSpace(lines[skipLines]) == "" {
		skipLines++
	}
	if skipLines == len(lines) {
		return nil, ErrNoHeadersFound
	}

	headerLine := strings.TrimRight(lines[skipLines], "\r")
	delimiter := DetectDelimiter(headerLine)

	reader := csv.NewReader(strings.NewReader(headerLine))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Fingerprint: generateFingerprint(headers),
		SampleRows:  getSampleRows([]byte(text), delimiter, 1, 5),
	}, nil
}

// SuggestLayout matches header names to column roles. Roles that cannot be
// matched are left empty.
func SuggestLayout(headers []string) *Layout {
	assigned := make(map[string]string)
	used := make(map[string]bool)

	for _, rk := range roleKeywords {
		for _, kw := range rk.keywords {
			if _, done := assigned[rk.role]; done {
				break
			}
			for _, header := range headers {
				h := strings.ToLower(strings.TrimSpace(header))
				if used[header] || h != kw {
					continue
				}
				assigned[rk.role] = header
				used[header] = true
				break
			}
		}
	}

	return &Layout{
		UserID:    assigned[RoleUserID],
		Time:      assigned[RoleTime],
		Account:   assigned[RoleAccount],
		Operation: assigned[RoleOperation],
		Coin:      assigned[RoleCoin],
		Change:    assigned[RoleChange],
		Remark:    assigned[RoleRemark],
	}
}

// Missing returns the required roles the layout could not resolve.
func (l *Layout) Missing() []string {
	var missing []string
	required := []struct {
		role, header string
	}{
		{RoleTime, l.Time},
		{RoleAccount, l.Account},
		{RoleOperation, l.Operation},
		{RoleCoin, l.Coin},
		{RoleChange, l.Change},
	}
	for _, r := range required {
		if r.header == "" {
			missing = append(missing, r.role)
		}
	}
	return missing
}

// NumericColumns returns the header names whose values must parse as numbers.
func (l *Layout) NumericColumns() []string {
	if l.Change == "" {
		return nil
	}
	return []string{l.Change}
}

// generateFingerprint creates a unique hash from header names
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

// getSampleRows returns the first N data rows after the header. Blank lines
// are skipped by the reader, so the header is always record 0.
func getSampleRows(data []byte, delimiter rune, startLine, maxRows int) [][]string {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	lineNum := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		if lineNum >= startLine {
			rows = append(rows, record)
			if len(rows) >= maxRows {
				break
			}
		}
		lineNum++
	}

	return rows
}
