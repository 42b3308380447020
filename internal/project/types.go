package project

// SaveItem is one document in a compound save call.
type SaveItem struct {
	Domain     string `json:"domain"`
	UUID       string `json:"uuid"`
	XML        string `json:"xml"`
	ItemType   string `json:"item_type,omitempty"`
	SimpleName string `json:"simple_name,omitempty"`
	Overwrite  bool   `json:"overwrite"`
}

// SaveResult reports the outcome for one saved item. Reason is set when
// Success is false.
type SaveResult struct {
	UUID     string `json:"uuid"`
	Success  bool   `json:"success"`
	Reason   string `json:"reason,omitempty"`
	Revision int    `json:"revision"`
}

// LoadRef identifies a document to load. Revision < 0 means "latest".
type LoadRef struct {
	UUID     string `json:"uuid"`
	Revision int    `json:"revision"`
}

// LoadedItem is one document in a load reply. XML is empty when the
// document does not exist.
type LoadedItem struct {
	Domain string `json:"domain"`
	UUID   string `json:"uuid"`
	XML    string `json:"xml"`
}

// VersionInfo describes a document's revision history.
type VersionInfo struct {
	Document  string `json:"document"`
	Revisions []int  `json:"revisions"`
}

// ItemInfo is one entry in a domain listing.
type ItemInfo struct {
	UUID       string `json:"uuid"`
	ItemType   string `json:"item_type"`
	SimpleName string `json:"simple_name"`
}

// ChildRef is a reference to a child document found while scanning a
// loaded root under a list tag.
type ChildRef struct {
	UUID     string
	Revision int
}
