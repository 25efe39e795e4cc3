package models

import "time"

// Die Record-Typen sind die normalisierten Datensätze, die die Collectors an
// den Processor übergeben. Sie sind bewusst von den Entities getrennt: ein
// Record ist eine Beobachtung aus einem Lauf, die Entity der konvergierte
// Zustand über alle Läufe.

// TrialRecord ist eine normalisierte Studien-Beobachtung aus dem Register.
type TrialRecord struct {
	NCTID           string
	Title           string
	Status          *string
	Phase           *string
	StartDate       *time.Time
	CompletionDate  *time.Time
	Enrollment      *int
	Sponsor         *string
	PrimaryEndpoint *string
	Summary         *string
	SourceURL       string
	LastUpdated     *time.Time
	// RawData ist die Original-Antwort des Registers, verbatim gespeichert
	// für spätere Re-Verarbeitung.
	RawData []byte
}

// PublicationRecord ist eine normalisierte Publikations-Beobachtung.
type PublicationRecord struct {
	PMID            string
	Title           string
	Authors         *string
	Journal         *string
	PublicationDate *time.Time
	Abstract        *string
	DOI             *string
	SourceURL       string
}

// NewsRecord ist eine normalisierte News-Beobachtung.
type NewsRecord struct {
	Title       string
	Source      *string
	PublishedAt *time.Time
	URL         string
	Summary     *string
}

// PatentRecord ist eine normalisierte Patent-Beobachtung (Such-Stub oder
// angereicherte Detailseite).
type PatentRecord struct {
	PatentNumber string
	Title        string
	Assignee     *string
	FilingDate   *time.Time
	GrantDate    *time.Time
	Abstract     *string
	ClaimsCount  *int
	SourceURL    string
}
