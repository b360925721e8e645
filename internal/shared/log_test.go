package shared

import "testing"

func TestSeverityString(t *testing.T) {
	cases := []struct {
		sev  Severity
		want string
	}{
		{SeverityDebug, "Debug"},
		{SeverityInfo, "Info"},
		{SeverityWarning, "Warning"},
		{SeverityError, "Error"},
		{Severity(99), "Unknown"},
	}
	for _, c := range cases {
		if got := c.sev.String(); got != c.want {
			t.Errorf("Severity(%d).String() = %q, want %q", c.sev, got, c.want)
		}
	}
}

func TestLogRoutesToCallback(t *testing.T) {
	type record struct {
		sev     Severity
		tag     string
		message string
	}
	var records []record
	SetLogCallback(func(severity Severity, tag, message string) {
		records = append(records, record{severity, tag, message})
	})
	defer SetLogCallback(nil)

	LogInfo("Test", "hello %s #%d", "world", 7)
	LogError("Other", "boom")

	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].sev != SeverityInfo || records[0].tag != "Test" || records[0].message != "hello world #7" {
		t.Errorf("record[0] = %+v", records[0])
	}
	if records[1].sev != SeverityError || records[1].message != "boom" {
		t.Errorf("record[1] = %+v", records[1])
	}
}
