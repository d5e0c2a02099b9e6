package brokers

import "github.com/foliolabs/foliosync/internal/domain"

// capabilityTable fixes the capability set per broker type. Entries are
// static; adapters hand them out by value and never mutate them.
var capabilityTable = map[domain.BrokerType]domain.Capabilities{
	domain.BrokerTradernet: {
		SupportsRealTimeSync:       true,
		SupportsTransactionHistory: true,
		SupportsDividendInfo:       true,
		SupportsReportImport:       false,
		MaxRequestsPerMinute:       60,
	},
	domain.BrokerDegiro: {
		SupportsRealTimeSync:       false,
		SupportsTransactionHistory: false,
		SupportsDividendInfo:       false,
		SupportsReportImport:       true,
		SupportedReportFormats:     []string{"csv"},
		MaxRequestsPerMinute:       0,
	},
	domain.BrokerManual: {
		SupportsRealTimeSync:       false,
		SupportsTransactionHistory: false,
		SupportsDividendInfo:       false,
		SupportsReportImport:       false,
		MaxRequestsPerMinute:       0,
	},
}

// CapabilitiesFor returns the fixed capability set for a broker type.
func CapabilitiesFor(bt domain.BrokerType) domain.Capabilities {
	return capabilityTable[bt]
}
