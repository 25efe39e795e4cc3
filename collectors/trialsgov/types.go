package trialsgov

// StudiesResponse ist die JSON-Antwort des /studies Endpunkts (API v2).
type StudiesResponse struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

// Study ist eine einzelne Studie der Registry-Antwort. Nur die Module, die
// wir tatsächlich auswerten, sind modelliert.
type Study struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

type ProtocolSection struct {
	IdentificationModule struct {
		NCTID         string `json:"nctId"`
		BriefTitle    string `json:"briefTitle"`
		OfficialTitle string `json:"officialTitle"`
	} `json:"identificationModule"`
	StatusModule struct {
		OverallStatus            string     `json:"overallStatus"`
		StartDateStruct          DateStruct `json:"startDateStruct"`
		CompletionDateStruct     DateStruct `json:"completionDateStruct"`
		LastUpdatePostDateStruct DateStruct `json:"lastUpdatePostDateStruct"`
	} `json:"statusModule"`
	DesignModule struct {
		Phases         []string `json:"phases"`
		EnrollmentInfo struct {
			Count *int `json:"count"`
		} `json:"enrollmentInfo"`
	} `json:"designModule"`
	SponsorCollaboratorsModule struct {
		LeadSponsor struct {
			Name string `json:"name"`
		} `json:"leadSponsor"`
	} `json:"sponsorCollaboratorsModule"`
	OutcomesModule struct {
		PrimaryOutcomes []struct {
			Measure string `json:"measure"`
		} `json:"primaryOutcomes"`
	} `json:"outcomesModule"`
	DescriptionModule struct {
		BriefSummary string `json:"briefSummary"`
	} `json:"descriptionModule"`
}

// DateStruct ist das Datumsformat des Registers, teils nur "YYYY-MM".
type DateStruct struct {
	Date string `json:"date"`
}
