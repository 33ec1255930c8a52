package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for an advertised endpoint.
func EncodeTXT(info *ServiceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyVersion] = strconv.Itoa(ProtocolVersion)
	txt[TXTKeyFingerprint] = strings.ToLower(info.Fingerprint)

	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}

	return txt
}

// DecodeTXT parses the TXT records of a discovered endpoint.
func DecodeTXT(txt TXTRecordMap) (version int, fingerprint, name string, err error) {
	vStr, ok := txt[TXTKeyVersion]
	if !ok {
		return 0, "", "", fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	version, convErr := strconv.Atoi(vStr)
	if convErr != nil || version < 1 {
		return 0, "", "", fmt.Errorf("%w: bad version %q", ErrInvalidTXTRecord, vStr)
	}

	fingerprint, ok = txt[TXTKeyFingerprint]
	if !ok {
		return 0, "", "", fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyFingerprint)
	}
	if len(fingerprint) != FingerprintLength || !isHexString(fingerprint) {
		return 0, "", "", fmt.Errorf("%w: bad fingerprint", ErrInvalidTXTRecord)
	}
	fingerprint = strings.ToLower(fingerprint)

	return version, fingerprint, txt[TXTKeyName], nil
}

// TXTRecordsToStrings converts a TXT map to "key=value" strings for
// zeroconf.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	out := make([]string, 0, len(txt))
	for k, v := range txt {
		out = append(out, k+"="+v)
	}
	return out
}

// StringsToTXTRecords parses "key=value" strings into a TXT map.
// Entries without '=' are treated as boolean flags with empty values.
func StringsToTXTRecords(records []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(records))
	for _, r := range records {
		if k, v, found := strings.Cut(r, "="); found {
			txt[k] = v
		} else if r != "" {
			txt[r] = ""
		}
	}
	return txt
}
