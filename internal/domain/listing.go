package domain

import "time"

type FundingType string

const (
	FundingRolling     FundingType = "rolling"
	FundingFullyFunded FundingType = "fully_funded"
	FundingCSC         FundingType = "csc"
	FundingPosition    FundingType = "position"
	FundingUnknown     FundingType = "unknown"
)

// FundingPrecedence is the order in which funding keyword sets are tried.
// More specific categories come first.
var FundingPrecedence = []FundingType{
	FundingCSC,
	FundingFullyFunded,
	FundingPosition,
	FundingRolling,
}

func (f FundingType) Valid() bool {
	switch f {
	case FundingRolling, FundingFullyFunded, FundingCSC, FundingPosition, FundingUnknown:
		return true
	}
	return false
}

type SourceName string

const (
	SourceEuraxess      SourceName = "euraxess"
	SourceScholarshipDb SourceName = "scholarshipdb"
	SourceFindAPhD      SourceName = "findaphd"
)

var KnownSources = []SourceName{SourceEuraxess, SourceScholarshipDb, SourceFindAPhD}

func (s SourceName) Valid() bool {
	for _, k := range KnownSources {
		if s == k {
			return true
		}
	}
	return false
}

type Region string

const (
	RegionEurope       Region = "europe"
	RegionAustralia    Region = "australia"
	RegionNorthAmerica Region = "north_america"
	RegionAsia         Region = "asia"
	RegionOther        Region = "other"
)

func (r Region) Valid() bool {
	switch r {
	case RegionEurope, RegionAustralia, RegionNorthAmerica, RegionAsia, RegionOther:
		return true
	}
	return false
}

// Listing is one PhD opportunity. SourceURL is the identity.
type Listing struct {
	SourceURL    string      `json:"sourceUrl"`
	Title        string      `json:"title"`
	Institution  string      `json:"institution"`
	Department   string      `json:"department"`
	Country      string      `json:"country"`
	Region       Region      `json:"region"`
	Discipline   string      `json:"discipline"`
	Deadline     *time.Time  `json:"deadline"`
	DeadlineText string      `json:"deadlineText"`
	Supervisor   string      `json:"supervisor"` // empty means unknown
	FundingType  FundingType `json:"fundingType"`
	Source       SourceName  `json:"source"`
	RawSnippet   string      `json:"rawSnippet"`
	FirstSeenAt  time.Time   `json:"firstSeenAt"`
	LastSeenAt   time.Time   `json:"lastSeenAt"`
}
