package parsers

import "encoding/json"

// WafRecord is one entry of the WAF fingerprinter's JSON array output.
type WafRecord struct {
	URL          string `json:"url"`
	Detected     bool   `json:"detected"`
	Firewall     string `json:"firewall"`
	Manufacturer string `json:"manufacturer"`
}

// HasWAF reports whether this record counts as WAF-protected: detected and
// firewall is a real name, not the sentinel "None".
func (w WafRecord) HasWAF() bool {
	return w.Detected && w.Firewall != "None"
}

// WafRecords parses the WAF fingerprinter's JSON array output. A malformed
// document yields an error; the pipeline stage treats that as a recoverable
// stage failure (empty WAF set), never a fatal one.
func WafRecords(data []byte) ([]WafRecord, error) {
	var records []WafRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
