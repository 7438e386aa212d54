package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/noirepd/precinct/internal/auth"
	"github.com/noirepd/precinct/internal/shared/errors"
	"github.com/noirepd/precinct/internal/shared/types"
)

// Status is the position of a case in the review workflow
type Status string

const (
	StatusPendingTrainee  Status = "PENDING_TRAINEE"
	StatusPendingOfficer  Status = "PENDING_OFFICER"
	StatusActive          Status = "ACTIVE"
	StatusInPursuit       Status = "IN_PURSUIT"
	StatusPendingSergeant Status = "PENDING_SERGEANT"
	StatusPendingChief    Status = "PENDING_CHIEF"
	StatusSolved          Status = "SOLVED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []Status{
	StatusPendingTrainee,
	StatusPendingOfficer,
	StatusActive,
	StatusInPursuit,
	StatusPendingSergeant,
	StatusPendingChief,
	StatusSolved,
	StatusRejected,
	StatusCancelled,
}

// IsOpen reports whether the case still accrues pursuit time.
func (s Status) IsOpen() bool {
	switch s {
	case StatusPendingTrainee, StatusPendingOfficer, StatusActive,
		StatusInPursuit, StatusPendingSergeant, StatusPendingChief:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusSolved || s == StatusCancelled
}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Validation("unknown case status", map[string]string{"status": s})
	}
	return st, nil
}

// CrimeLevel classifies case severity. CRITICAL is the most severe and has
// the lowest raw value.
type CrimeLevel int

const (
	CrimeLevelCritical CrimeLevel = 0
	CrimeLevel1        CrimeLevel = 1
	CrimeLevel2        CrimeLevel = 2
	CrimeLevel3        CrimeLevel = 3
)

func (l CrimeLevel) Valid() bool {
	return l >= CrimeLevelCritical && l <= CrimeLevel3
}

// Ptr returns a pointer to a copy of l, for optional inputs.
func (l CrimeLevel) Ptr() *CrimeLevel {
	return &l
}

func (l CrimeLevel) String() string {
	switch l {
	case CrimeLevelCritical:
		return "CRITICAL"
	case CrimeLevel1:
		return "LEVEL_1"
	case CrimeLevel2:
		return "LEVEL_2"
	case CrimeLevel3:
		return "LEVEL_3"
	}
	return fmt.Sprintf("CrimeLevel(%d)", int(l))
}

// Origin records how a case entered the system
type Origin string

const (
	OriginComplaint Origin = "complaint"
	OriginScene     Origin = "scene"
)

// Case is the aggregate root for the investigation workflow
type Case struct {
	ID                 types.ID   `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	CrimeLevel         CrimeLevel `json:"crime_level"`
	Status             Status     `json:"status"`
	SubmissionAttempts int        `json:"submission_attempts"`
	ReviewNotes        string     `json:"review_notes,omitempty"`
	CreatorID          types.ID   `json:"creator_id"`

	Scene        *Scene        `json:"scene,omitempty"`
	Complainants []Complainant `json:"complainants"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic concurrency token; every persisted update increments it.
	Version int `json:"version"`

	domainEvents []CaseEvent
}

func newCase(creator auth.Actor, title, description string, level CrimeLevel, now time.Time) (*Case, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.Validation("title is required", map[string]string{"field": "title"})
	}
	if !level.Valid() {
		return nil, errors.Validation("invalid crime level", map[string]string{"crime_level": fmt.Sprint(int(level))})
	}
	if creator.ID.IsZero() {
		return nil, errors.Validation("creator is required", nil)
	}

	return &Case{
		ID:                 types.NewID(),
		Title:              title,
		Description:        description,
		CrimeLevel:         level,
		SubmissionAttempts: 1,
		CreatorID:          creator.ID,
		Complainants:       []Complainant{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// NewComplaint opens a case from a citizen complaint. The creator becomes
// the first, unconfirmed complainant.
func NewComplaint(creator auth.Actor, title, description string, level CrimeLevel, now time.Time) (*Case, error) {
	c, err := newCase(creator, title, description, level, now)
	if err != nil {
		return nil, err
	}

	c.Status = StatusPendingTrainee
	c.Complainants = append(c.Complainants, Complainant{UserID: creator.ID, AddedAt: now})
	c.addEvent(EventTypeCreated, creator.ID, "Complaint filed", map[string]any{
		"origin": OriginComplaint,
		"status": c.Status,
	}, now)

	return c, nil
}

// NewSceneReport opens a case from a crime scene registered by police.
// A chief's report skips officer review.
func NewSceneReport(creator auth.Actor, title, description string, level CrimeLevel, scene Scene, now time.Time) (*Case, error) {
	if !creator.Roles.HasAny(auth.OfficerOrHigher...) {
		return nil, errors.Forbidden("only officers and above can register a crime scene")
	}
	if err := scene.Validate(now); err != nil {
		return nil, err
	}

	c, err := newCase(creator, title, description, level, now)
	if err != nil {
		return nil, err
	}

	c.Status = StatusPendingOfficer
	if creator.Roles.IsChief() {
		c.Status = StatusActive
	}
	for i := range scene.Witnesses {
		scene.Witnesses[i].ID = types.NewID()
	}
	c.Scene = &scene
	c.addEvent(EventTypeCreated, creator.ID, "Crime scene registered", map[string]any{
		"origin":   OriginScene,
		"status":   c.Status,
		"location": scene.Location,
	}, now)

	return c, nil
}

// Origin returns how the case was created
func (c *Case) Origin() Origin {
	if c.Scene != nil {
		return OriginScene
	}
	return OriginComplaint
}

// TraineeReview handles the first screening of a complaint. Rejection
// counts as a failed attempt; reaching maxAttempts cancels the case.
// Complainants listed in confirmed are marked confirmed, all others are
// reset to unconfirmed.
func (c *Case) TraineeReview(actor auth.Actor, approved bool, notes string, confirmed []types.ID, maxAttempts int, now time.Time) error {
	if !actor.Roles.HasAny(auth.TraineeOnly...) {
		return errors.Forbidden("only trainees can screen complaints")
	}
	if err := c.expect("review", StatusPendingTrainee); err != nil {
		return err
	}

	confirmedSet := make(map[types.ID]bool, len(confirmed))
	for _, id := range confirmed {
		confirmedSet[id] = true
	}
	for i := range c.Complainants {
		c.Complainants[i].IsConfirmed = confirmedSet[c.Complainants[i].UserID]
	}

	c.ReviewNotes = notes
	if approved {
		c.transition(StatusPendingOfficer, actor.ID, "Complaint accepted by trainee", notes, now)
		return nil
	}

	c.SubmissionAttempts++
	if c.SubmissionAttempts >= maxAttempts {
		c.transition(StatusCancelled, actor.ID, "Complaint cancelled after repeated rejection", notes, now)
		return nil
	}
	c.transition(StatusRejected, actor.ID, "Complaint returned to complainant", notes, now)
	return nil
}

// Resubmit sends a rejected complaint back to trainee screening, optionally
// with a corrected title and description.
func (c *Case) Resubmit(actor auth.Actor, title, description *string, now time.Time) error {
	if actor.ID != c.CreatorID {
		return errors.Forbidden("only the creator can resubmit a case")
	}
	if err := c.expect("resubmit", StatusRejected); err != nil {
		return err
	}

	if title != nil {
		t := strings.TrimSpace(*title)
		if t == "" {
			return errors.Validation("title is required", map[string]string{"field": "title"})
		}
		c.Title = t
	}
	if description != nil {
		c.Description = *description
	}

	c.transition(StatusPendingTrainee, actor.ID, "Complaint resubmitted", "", now)
	return nil
}

// OfficerReview approves or returns a case waiting for an officer. The
// reviewer must outrank the creator unless the reviewer is a chief.
func (c *Case) OfficerReview(actor auth.Actor, creatorRoles auth.RoleSet, approved bool, notes string, now time.Time) error {
	if !actor.Roles.HasAny(auth.OfficerOrHigher...) {
		return errors.Forbidden("only officers and above can review cases")
	}
	if err := c.expect("officer-review", StatusPendingOfficer); err != nil {
		return err
	}
	if !actor.Roles.IsChief() && actor.Roles.MaxSeniority() <= creatorRoles.MaxSeniority() {
		return errors.Forbidden("reviewer must outrank the case creator")
	}

	c.ReviewNotes = notes
	if approved {
		c.transition(StatusActive, actor.ID, "Case approved by officer", notes, now)
		return nil
	}
	c.transition(StatusPendingTrainee, actor.ID, "Case returned to trainee", notes, now)
	return nil
}

// SubmitResolution hands an active investigation to the sergeant. At least
// one main suspect must be identified.
func (c *Case) SubmitResolution(actor auth.Actor, mainSuspects int, now time.Time) error {
	if !actor.Roles.HasAny(auth.DetectiveGroup...) {
		return errors.Forbidden("only detectives can submit a resolution")
	}
	if err := c.expect("submit a resolution for", StatusActive); err != nil {
		return err
	}
	if mainSuspects < 1 {
		return errors.Validation("at least one main suspect is required", map[string]string{"case_id": c.ID.String()})
	}

	c.transition(StatusPendingSergeant, actor.ID, "Resolution submitted", "", now)
	return nil
}

// SergeantReview decides on a submitted resolution. Approval starts the
// pursuit of the main suspects; rejection returns the case to the detective.
func (c *Case) SergeantReview(actor auth.Actor, approved bool, notes string, now time.Time) error {
	if !actor.Roles.HasAny(auth.SergeantGroup...) {
		return errors.Forbidden("only sergeants can review resolutions")
	}
	if err := c.expect("sergeant-review", StatusPendingSergeant); err != nil {
		return err
	}

	c.ReviewNotes = notes
	if approved {
		c.transition(StatusInPursuit, actor.ID, "Resolution approved, suspects under pursuit", notes, now)
		return nil
	}
	c.transition(StatusActive, actor.ID, "Resolution returned to detective", notes, now)
	return nil
}

// ConfirmArrests closes the pursuit once every main suspect is arrested.
// Critical cases still need the chief's sign-off.
func (c *Case) ConfirmArrests(actor auth.Actor, mainSuspects, unarrested int, now time.Time) error {
	if !actor.Roles.HasAny(auth.SergeantGroup...) {
		return errors.Forbidden("only sergeants can confirm arrests")
	}
	if err := c.expect("confirm arrests for", StatusInPursuit); err != nil {
		return err
	}
	if mainSuspects < 1 {
		return errors.Validation("case has no main suspect", map[string]string{"case_id": c.ID.String()})
	}
	if unarrested > 0 {
		return errors.Validation("all main suspects must be arrested", map[string]string{
			"case_id":    c.ID.String(),
			"unarrested": fmt.Sprint(unarrested),
		})
	}

	if c.CrimeLevel == CrimeLevelCritical {
		c.transition(StatusPendingChief, actor.ID, "Arrests confirmed, awaiting chief", "", now)
		return nil
	}
	c.transition(StatusSolved, actor.ID, "Arrests confirmed, case solved", "", now)
	return nil
}

// ChiefReview is the final sign-off on critical cases
func (c *Case) ChiefReview(actor auth.Actor, approved bool, notes string, now time.Time) error {
	if !actor.Roles.HasAny(auth.ChiefOnly...) {
		return errors.Forbidden("only the chief can sign off critical cases")
	}
	if err := c.expect("chief-review", StatusPendingChief); err != nil {
		return err
	}

	c.ReviewNotes = notes
	if approved {
		c.transition(StatusSolved, actor.ID, "Case closed by chief", notes, now)
		return nil
	}
	c.transition(StatusActive, actor.ID, "Case reopened by chief", notes, now)
	return nil
}

// AddComplainant links another user to the case as an unconfirmed complainant.
func (c *Case) AddComplainant(actor auth.Actor, userID types.ID, now time.Time) error {
	if actor.ID != c.CreatorID && !actor.Roles.HasAny(auth.OfficerOrHigher...) {
		return errors.Forbidden("only the creator or police can add complainants")
	}
	if c.Status.IsTerminal() {
		return errors.InvalidState("cannot add complainants to a closed case", string(c.Status))
	}
	if userID.IsZero() {
		return errors.Validation("user is required", map[string]string{"field": "user_id"})
	}
	if c.IsComplainant(userID) {
		return errors.Validation("user is already a complainant on this case", map[string]string{"user_id": userID.String()})
	}

	c.Complainants = append(c.Complainants, Complainant{UserID: userID, AddedAt: now})
	c.UpdatedAt = now
	c.addEvent(EventTypeComplainantAdded, actor.ID, "Complainant added", map[string]any{
		"user_id": userID,
	}, now)
	return nil
}

// IsComplainant reports whether the user is linked to the case
func (c *Case) IsComplainant(userID types.ID) bool {
	for _, cp := range c.Complainants {
		if cp.UserID == userID {
			return true
		}
	}
	return false
}

// PendingEvents returns events recorded since the case was loaded, without
// clearing them. Repositories persist these with the update.
func (c *Case) PendingEvents() []CaseEvent {
	return c.domainEvents
}

// GetDomainEvents returns and clears domain events
func (c *Case) GetDomainEvents() []CaseEvent {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

func (c *Case) expect(action string, status Status) error {
	if c.Status != status {
		return errors.InvalidState(
			fmt.Sprintf("cannot %s a case in status %s", action, c.Status),
			string(c.Status),
		)
	}
	return nil
}

func (c *Case) transition(to Status, actorID types.ID, description, notes string, now time.Time) {
	from := c.Status
	c.Status = to
	c.UpdatedAt = now

	data := map[string]any{
		"old_status": from,
		"new_status": to,
	}
	if notes != "" {
		data["notes"] = notes
	}
	c.addEvent(EventTypeStatusChanged, actorID, description, data, now)
}

func (c *Case) addEvent(eventType EventType, actorID types.ID, description string, data map[string]any, now time.Time) {
	c.domainEvents = append(c.domainEvents, CaseEvent{
		ID:          types.NewID(),
		CaseID:      c.ID,
		Type:        eventType,
		ActorID:     actorID,
		Description: description,
		Data:        data,
		Timestamp:   now,
	})
}
