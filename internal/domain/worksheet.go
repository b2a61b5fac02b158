package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubjectType identifies the worksheet subject family. Each subject has
// its own generator, structural schema, and PDF layout.
type SubjectType string

const (
	SubjectGrammar       SubjectType = "grammar"
	SubjectReading       SubjectType = "reading"
	SubjectSocialStudies SubjectType = "social_studies"
	SubjectSTAARReading  SubjectType = "staar_reading"
)

// Valid checks if the subject type is one we generate.
func (s SubjectType) Valid() bool {
	switch s {
	case SubjectGrammar, SubjectReading, SubjectSocialStudies, SubjectSTAARReading:
		return true
	default:
		return false
	}
}

// Worksheet is a generated artifact. The file key is assigned once at
// generation time and is the externally visible handle; rows are written
// only on explicit save and are immutable afterwards.
type Worksheet struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	FileKey    string
	Subject    SubjectType
	GradeLevel string
	Topic      string
	Content    WorksheetContent
	CreatedAt  time.Time
}
