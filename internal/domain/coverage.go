package domain

import "time"

// CoverageRecord is one normalized row of a coverage-level snapshot.
type CoverageRecord struct {
	MaterialID     string    // "Material"
	CoverageLevel  string    // "Nível de Cobertura", free text
	Balance        *float64  // "Balance", nil when absent or unparseable
	Requirement    *float64  // "Necessidade", nil when absent or unparseable
	ProjectID      string    // "Linha de ATO"
	Area           string    // "Área"
	ProcessingDate Date      // day the snapshot was processed
	ChangedAt      time.Time // "Data Alteração", zero when absent

	// CoveragePercentage is Balance/Requirement*100.
	// nil when the requirement is zero or either operand is missing.
	CoveragePercentage *float64
}

// Coverage spreadsheet column names.
const (
	ColCoverageLevel = "Nível de Cobertura"
	ColMaterial      = "Material"
	ColRequirement   = "Necessidade"
	ColBalance       = "Balance"
	ColCoverageLine  = "Linha de ATO"
	ColCoverageArea  = "Área"
	ColChangedAt     = "Data Alteração"
)

// CoverageColumns lists the columns a coverage file must carry.
var CoverageColumns = []string{ColCoverageLevel}
