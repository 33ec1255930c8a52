package discovery

import (
	"strings"
	"testing"

	"github.com/enbility/zeroconf/v3"
)

const testFingerprint = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"

func TestEncodeTXT(t *testing.T) {
	info := &ServiceInfo{
		InstanceName: "gateway-01",
		Port:         443,
		Fingerprint:  strings.ToUpper(testFingerprint),
		Name:         "Lab Gateway",
	}

	txt := EncodeTXT(info)
	if txt[TXTKeyVersion] != "1" {
		t.Errorf("version = %q, want 1", txt[TXTKeyVersion])
	}
	if txt[TXTKeyFingerprint] != testFingerprint {
		t.Errorf("fingerprint not lowercased: %q", txt[TXTKeyFingerprint])
	}
	if txt[TXTKeyName] != "Lab Gateway" {
		t.Errorf("name = %q", txt[TXTKeyName])
	}
}

func TestEncodeTXTOmitsEmptyName(t *testing.T) {
	txt := EncodeTXT(&ServiceInfo{
		InstanceName: "gateway-01",
		Port:         443,
		Fingerprint:  testFingerprint,
	})
	if _, present := txt[TXTKeyName]; present {
		t.Error("empty name should not be encoded")
	}
}

func TestDecodeTXT(t *testing.T) {
	version, fingerprint, name, err := DecodeTXT(TXTRecordMap{
		"v":  "1",
		"fp": testFingerprint,
		"dn": "Lab Gateway",
	})
	if err != nil {
		t.Fatalf("DecodeTXT failed: %v", err)
	}
	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}
	if fingerprint != testFingerprint {
		t.Errorf("fingerprint = %q", fingerprint)
	}
	if name != "Lab Gateway" {
		t.Errorf("name = %q", name)
	}
}

func TestDecodeTXTErrors(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
	}{
		{"missing version", TXTRecordMap{"fp": testFingerprint}},
		{"bad version", TXTRecordMap{"v": "zero", "fp": testFingerprint}},
		{"zero version", TXTRecordMap{"v": "0", "fp": testFingerprint}},
		{"missing fingerprint", TXTRecordMap{"v": "1"}},
		{"short fingerprint", TXTRecordMap{"v": "1", "fp": "abcd"}},
		{"non-hex fingerprint", TXTRecordMap{"v": "1", "fp": strings.Repeat("z", 64)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := DecodeTXT(tt.txt); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTXTRoundTrip(t *testing.T) {
	info := &ServiceInfo{
		InstanceName: "gateway-01",
		Port:         8443,
		Fingerprint:  testFingerprint,
		Name:         "Lab Gateway",
	}

	strs := TXTRecordsToStrings(EncodeTXT(info))
	version, fingerprint, name, err := DecodeTXT(StringsToTXTRecords(strs))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if version != ProtocolVersion || fingerprint != testFingerprint || name != "Lab Gateway" {
		t.Errorf("round trip mismatch: v=%d fp=%q dn=%q", version, fingerprint, name)
	}
}

func TestStringsToTXTRecords(t *testing.T) {
	txt := StringsToTXTRecords([]string{"a=1", "b=x=y", "flag", ""})
	if txt["a"] != "1" {
		t.Errorf("a = %q", txt["a"])
	}
	// Only the first '=' splits.
	if txt["b"] != "x=y" {
		t.Errorf("b = %q", txt["b"])
	}
	if v, present := txt["flag"]; !present || v != "" {
		t.Errorf("flag = %q present=%v", v, present)
	}
	if len(txt) != 3 {
		t.Errorf("len = %d, want 3", len(txt))
	}
}

func TestServiceInfoValidate(t *testing.T) {
	valid := ServiceInfo{InstanceName: "gw", Port: 443, Fingerprint: testFingerprint}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid info rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ServiceInfo)
	}{
		{"empty instance", func(s *ServiceInfo) { s.InstanceName = "" }},
		{"zero port", func(s *ServiceInfo) { s.Port = 0 }},
		{"short fingerprint", func(s *ServiceInfo) { s.Fingerprint = "abcd" }},
		{"non-hex fingerprint", func(s *ServiceInfo) { s.Fingerprint = strings.Repeat("g", 64) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := valid
			tt.mutate(&info)
			if err := info.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAdvertiserRejectsInvalidInfo(t *testing.T) {
	a := NewAdvertiser(DefaultAdvertiserConfig())
	defer a.Stop()

	if err := a.Advertise(&ServiceInfo{}); err == nil {
		t.Error("expected validation error")
	}
}

func TestAdvertiserUpdateBeforeAdvertise(t *testing.T) {
	a := NewAdvertiser(DefaultAdvertiserConfig())

	err := a.Update(&ServiceInfo{InstanceName: "gw", Port: 443, Fingerprint: testFingerprint})
	if err != ErrNotAdvertising {
		t.Errorf("Update = %v, want ErrNotAdvertising", err)
	}
	// Stop without advertising is a no-op.
	a.Stop()
}

func TestMergeAddresses(t *testing.T) {
	got := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "10.0.0.2"})
	if len(got) != 2 || got[0] != "10.0.0.1" || got[1] != "10.0.0.2" {
		t.Errorf("mergeAddresses = %v", got)
	}
}

func TestRemoveAddresses(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	entry.AddrIPv4 = nil
	got := removeAddresses([]string{"10.0.0.1"}, entry)
	if len(got) != 1 {
		t.Errorf("removeAddresses dropped unrelated address: %v", got)
	}
}

func TestEntryToEndpointRejectsBadTXT(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	entry.Instance = "gw"
	entry.Text = []string{"v=1"} // no fingerprint
	if ep := entryToEndpoint(entry); ep != nil {
		t.Errorf("malformed entry accepted: %+v", ep)
	}
}
