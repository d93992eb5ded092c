package model

// MintResponse is the body returned by the backend analyze-and-mint endpoint.
// Only TxID is consumed here.
type MintResponse struct {
	TxID            string      `json:"txId"`
	AIReportDisplay interface{} `json:"ai_report_display,omitempty"`
	IPFSLink        string      `json:"ipfs_link,omitempty"`
	DocumentType    string      `json:"document_type,omitempty"`
	DocumentIcon    string      `json:"document_icon,omitempty"`
	DocumentName    string      `json:"document_name,omitempty"`
}
