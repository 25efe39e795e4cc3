package models

// SearchType kennzeichnet die Suchachse, über die ein Datensatz entdeckt wurde.
// Der Tag dient ausschließlich der späteren Filterung/Attribution im Dashboard,
// nicht der Reconciliation-Logik.
type SearchType string

const (
	SearchTypeAsset            SearchType = "asset"
	SearchTypeTarget           SearchType = "target"
	SearchTypeIndication       SearchType = "indication"
	SearchTypeDiseaseDiscovery SearchType = "disease_discovery"
)

// String implementiert fmt.Stringer.
func (s SearchType) String() string {
	return string(s)
}
