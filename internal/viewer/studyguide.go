// Package viewer holds the interaction state of the artifact viewers. Viewers
// only read the artifacts they are given; they are not safe for concurrent use
// and are guarded by the owning session.
package viewer

import (
	"errors"

	"studybuddy/internal/models"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrEmptyArtifact   = errors.New("artifact has no entries")
)

type StudyGuideViewer struct {
	guide      *models.StudyGuide
	active     int
	bookmarked bool
}

func NewStudyGuideViewer(guide *models.StudyGuide) *StudyGuideViewer {
	return &StudyGuideViewer{guide: guide}
}

// Select makes section i active.
func (v *StudyGuideViewer) Select(i int) error {
	if i < 0 || i >= len(v.guide.Content) {
		return ErrIndexOutOfRange
	}
	v.active = i
	return nil
}

func (v *StudyGuideViewer) Active() (int, models.Section) {
	if len(v.guide.Content) == 0 {
		return 0, models.Section{}
	}
	return v.active, v.guide.Content[v.active]
}

func (v *StudyGuideViewer) PlainText() string {
	return v.guide.PlainText()
}

func (v *StudyGuideViewer) ToggleBookmark() bool {
	v.bookmarked = !v.bookmarked
	return v.bookmarked
}

type StudyGuideState struct {
	ActiveSection int  `json:"activeSection"`
	SectionCount  int  `json:"sectionCount"`
	Bookmarked    bool `json:"bookmarked"`
}

func (v *StudyGuideViewer) State() StudyGuideState {
	return StudyGuideState{
		ActiveSection: v.active,
		SectionCount:  len(v.guide.Content),
		Bookmarked:    v.bookmarked,
	}
}
