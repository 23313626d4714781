package sniffer

import (
	"testing"
)

// Exchange "transaction history" export, comma separated
const sampleCommaCSV = `User_ID,UTC_Time,Account,Operation,Coin,Change,Remark
1001,2024-03-01 10:00:00,Spot,Buy,BTC,0.1,
1001,2024-03-01 10:00:00,Spot,Buy,EUR,-3000,
`

// Same export as saved by a European spreadsheet
const sampleSemicolonCSV = `User_ID;UTC_Time;Account;Operation;Coin;Change;Remark
1001;01/03/2024 10:00:00;Spot;Buy;BTC;0,1;
1001;01/03/2024 10:00:00;Spot;Buy;EUR;-3000;
`

const sampleTSV = "User_ID\tUTC_Time\tAccount\tOperation\tCoin\tChange\tRemark\n" +
	"1001\t2024-03-01 10:00:00\tSpot\tDeposit\tBTC\t0.5\tfrom cold wallet\n"

func TestDetectDelimiter_Priority(t *testing.T) {
	tests := []struct {
		header   string
		expected rune
	}{
		{"a;b;c", ';'},
		{"a\tb\tc", '\t'},
		{"a,b,c", ','},
		{"a;b\tc,d", ';'},
		{"a\tb,c", '\t'},
		{"single", ','},
	}

	for _, tc := range tests {
		got := DetectDelimiter(tc.header)
		if got != tc.expected {
			t.Errorf("DetectDelimiter(%q) = %q, want %q", tc.header, got, tc.expected)
		}
	}
}

func TestDetectConfig_CommaCSV(t *testing.T) {
	config, err := DetectConfig([]byte(sampleCommaCSV))
	if err != nil {
		t.Fatalf("DetectConfig failed: %v", err)
	}

	if config.Delimiter != ',' {
		t.Errorf("Expected delimiter ',', got '%c'", config.Delimiter)
	}
	if config.SkipLines != 0 {
		t.Errorf("Expected 0 skip lines, got %d", config.SkipLines)
	}

	expectedHeaders := []string{"User_ID", "UTC_Time", "Account", "Operation", "Coin", "Change", "Remark"}
	if len(config.Headers) != len(expectedHeaders) {
		t.Fatalf("Expected %d headers, got %d", len(expectedHeaders), len(config.Headers))
	}
	for i, h := range expectedHeaders {
		if config.Headers[i] != h {
			t.Errorf("Header %d: expected %q, got %q", i, h, config.Headers[i])
		}
	}

	if len(config.SampleRows) != 2 {
		t.Errorf("Expected 2 sample rows, got %d", len(config.SampleRows))
	}
}

func TestDetectConfig_SemicolonCSV(t *testing.T) {
	config, err := DetectConfig([]byte(sampleSemicolonCSV))
	if err != nil {
		t.Fatalf("DetectConfig failed: %v", err)
	}
	if config.Delimiter != ';' {
		t.Errorf("Expected delimiter ';', got '%c'", config.Delimiter)
	}
	if len(config.Headers) != 7 {
		t.Errorf("Expected 7 headers, got %d", len(config.Headers))
	}
}

func TestDetectConfig_TSV(t *testing.T) {
	config, err := DetectConfig([]byte(sampleTSV))
	if err != nil {
		t.Fatalf("DetectConfig failed: %v", err)
	}
	if config.Delimiter != '\t' {
		t.Errorf("Expected tab delimiter, got '%c'", config.Delimiter)
	}
}

func TestDetectConfig_SkipsBOMAndBlankLines(t *testing.T) {
	data := "\ufeff\n\n" + sampleCommaCSV
	config, err := DetectConfig([]byte(data))
	if err != nil {
		t.Fatalf("DetectConfig failed: %v", err)
	}
	if config.SkipLines != 2 {
		t.Errorf("Expected 2 skip lines, got %d", config.SkipLines)
	}
	if config.Headers[0] != "User_ID" {
		t.Errorf("Expected BOM stripped from first header, got %q", config.Headers[0])
	}
}

func TestDetectConfig_Empty(t *testing.T) {
	if _, err := DetectConfig(nil); err != ErrEmptyFile {
		t.Errorf("Expected ErrEmptyFile, got %v", err)
	}
	if _, err := DetectConfig([]byte("  \n\n")); err != ErrEmptyFile {
		t.Errorf("Expected ErrEmptyFile for blank input, got %v", err)
	}
}

func TestFingerprint_SameLayoutDifferentDelimiter(t *testing.T) {
	comma, err := DetectConfig([]byte(sampleCommaCSV))
	if err != nil {
		t.Fatalf("DetectConfig failed: %v", err)
	}
	semi, err := DetectConfig([]byte(sampleSemicolonCSV))
	if err != nil {
		t.Fatalf("DetectConfig failed: %v", err)
	}
	if comma.Fingerprint != semi.Fingerprint {
		t.Error("Expected identical fingerprints for the same header set")
	}
}

func TestSuggestLayout_ExchangeHeaders(t *testing.T) {
	layout := SuggestLayout([]string{"User_ID", "UTC_Time", "Account", "Operation", "Coin", "Change", "Remark"})

	if layout.UserID != "User_ID" {
		t.Errorf("Expected UserID column, got %q", layout.UserID)
	}
	if layout.Time != "UTC_Time" {
		t.Errorf("Expected Time column, got %q", layout.Time)
	}
	if layout.Operation != "Operation" || layout.Coin != "Coin" || layout.Change != "Change" {
		t.Errorf("Unexpected layout: %+v", layout)
	}
	if layout.Remark != "Remark" {
		t.Errorf("Expected Remark column, got %q", layout.Remark)
	}
	if missing := layout.Missing(); len(missing) != 0 {
		t.Errorf("Expected no missing roles, got %v", missing)
	}
}

func TestSuggestLayout_AlternativeSpellings(t *testing.T) {
	layout := SuggestLayout([]string{"Date", "Wallet", "Type", "Asset", "Amount"})

	if layout.Time != "Date" || layout.Account != "Wallet" || layout.Operation != "Type" ||
		layout.Coin != "Asset" || layout.Change != "Amount" {
		t.Errorf("Unexpected layout: %+v", layout)
	}
	if layout.Remark != "" {
		t.Errorf("Expected no remark column, got %q", layout.Remark)
	}
}

func TestLayout_Missing(t *testing.T) {
	layout := SuggestLayout([]string{"UTC_Time", "Coin"})
	missing := layout.Missing()

	expected := []string{RoleAccount, RoleOperation, RoleChange}
	if len(missing) != len(expected) {
		t.Fatalf("Expected %v missing, got %v", expected, missing)
	}
	for i, role := range expected {
		if missing[i] != role {
			t.Errorf("Missing[%d] = %q, want %q", i, missing[i], role)
		}
	}
}
