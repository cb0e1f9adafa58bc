package services

import "errors"

// ErrorKind classifies a service error for the transport layer.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindConflict
	KindBadRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Error is a failure whose Message is safe to show to the caller.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// BadRequest builds an ad-hoc validation error.
func BadRequest(message string) error {
	return newError(KindBadRequest, message)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal if there is none.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// PublicMessage returns the caller-visible message for err; internal errors
// get a generic text.
func PublicMessage(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Kind != KindInternal {
		return svcErr.Message
	}
	return "the server encountered a problem and could not process your request"
}

var (
	ErrEventNotFound      = newError(KindNotFound, "Event not found")
	ErrAttendeeNotFound   = newError(KindNotFound, "Attendee not found")
	ErrTeamNotFound       = newError(KindNotFound, "Team not found")
	ErrInvalidJoinCode    = newError(KindNotFound, "Invalid join code")
	ErrInviteNotFound     = newError(KindNotFound, "Invite not found")
	ErrSubmissionNotFound = newError(KindNotFound, "Submission not found")

	ErrEventNotOpen              = newError(KindForbidden, "This event is not open for registration")
	ErrNotTeamLeader             = newError(KindForbidden, "Only the team leader can do this")
	ErrSubmissionForbidden       = newError(KindForbidden, "You do not have access to this submission")
	ErrSubmissionDeleteForbidden = newError(KindForbidden, "Only the owner or the team leader can delete this submission")

	ErrAuthRequired       = newError(KindUnauthorized, "Authentication required")
	ErrInvalidToken       = newError(KindUnauthorized, "Invalid or expired token")
	ErrTokenEventMismatch = newError(KindUnauthorized, "Token is not valid for this event")
	ErrInvalidCredentials = newError(KindUnauthorized, "Invalid email or password")

	ErrEmailTaken    = newError(KindConflict, "Email is already registered for this event")
	ErrAlreadyInTeam = newError(KindConflict, "You are already in a team")
	ErrTeamNameTaken = newError(KindConflict, "A team with this name already exists")

	ErrNameRequired         = newError(KindBadRequest, "Name is required")
	ErrEmailRequired        = newError(KindBadRequest, "Email is required")
	ErrInvalidEmail         = newError(KindBadRequest, "Invalid email address")
	ErrPasswordRequired     = newError(KindBadRequest, "Password is required")
	ErrPasswordTooShort     = newError(KindBadRequest, "Password must be at least 8 characters")
	ErrTeamNameRequired     = newError(KindBadRequest, "Team name is required")
	ErrInvalidJoinType      = newError(KindBadRequest, "Invalid join type")
	ErrInvalidMaxMembers    = newError(KindBadRequest, "Invalid max members")
	ErrMaxMembersBelowCount = newError(KindBadRequest, "Max members cannot be below the current member count")
	ErrJoinCodeRequired     = newError(KindBadRequest, "Join code is required")
	ErrNoJoinCode           = newError(KindBadRequest, "Only code teams have a join code")
	ErrTeamNotJoinable      = newError(KindBadRequest, "This team is not open for joining")
	ErrTeamFull             = newError(KindBadRequest, "Team is full")
	ErrNotTeamMember        = newError(KindBadRequest, "You are not a member of this team")
	ErrInviteExpired        = newError(KindBadRequest, "Invite has expired")
	ErrInviteTokenRequired  = newError(KindBadRequest, "Invite token is required")

	ErrTeamRequired         = newError(KindBadRequest, "You must be in a team to submit")
	ErrTeamSubmissionExists = newError(KindBadRequest, "Your team already has a submission")
	ErrSoloSubmissionExists = newError(KindBadRequest, "You already have a submission")
	ErrSubmissionLocked     = newError(KindBadRequest, "Cannot edit a submitted project")
	ErrTitleRequired        = newError(KindBadRequest, "Title is required to submit")
	ErrDeadlinePassed       = newError(KindBadRequest, "Submission deadline has passed")
	ErrAlreadySubmitted     = newError(KindBadRequest, "Project has already been submitted")
	ErrOnlyDraftDeletable   = newError(KindBadRequest, "Only draft projects can be deleted")
	ErrUnknownAction        = newError(KindBadRequest, "Unknown action")

	ErrFileRequired       = newError(KindBadRequest, "File is required")
	ErrFileTooLarge       = newError(KindBadRequest, "File exceeds the 10MB limit")
	ErrFileTypeNotAllowed = newError(KindBadRequest, "File type not allowed")
)
