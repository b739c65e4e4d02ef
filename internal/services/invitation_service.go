package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/models"
	"github.com/taskhive/taskhive/internal/realtime"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/mail"
	"github.com/taskhive/taskhive/pkg/validator"
)

// InviteInput describes a new invitation to a list.
type InviteInput struct {
	Email string `json:"email" binding:"required,email" validate:"required,email"`
	Role  string `json:"role" binding:"required" validate:"required"`
}

// InvitationService owns the invitation lifecycle: creation with duplicate and
// escalation checks, lazy expiry, and identity binding at accept time.
type InvitationService struct {
	db            *gorm.DB
	lists         *ListService
	activities    *ActivityService
	notifications *NotificationService
	users         *UserService
	hub           *realtime.Hub
	mailer        mail.Mailer
	baseURL       string
	now           func() time.Time
	log           *zap.Logger
}

// NewInvitationService constructs an InvitationService. The mailer may be nil
// when SMTP delivery is not configured; invitations still work in-app.
func NewInvitationService(db *gorm.DB, lists *ListService, activities *ActivityService, notifications *NotificationService, users *UserService, hub *realtime.Hub, mailer mail.Mailer, baseURL string) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if lists == nil || activities == nil || notifications == nil || users == nil {
		return nil, errors.New("invitation service: list, activity, notification and user services are required")
	}
	return &InvitationService{
		db:            db,
		lists:         lists,
		activities:    activities,
		notifications: notifications,
		users:         users,
		hub:           hub,
		mailer:        mailer,
		baseURL:       baseURL,
		now:           time.Now,
		log:           pipelineLogger("invitations"),
	}, nil
}

// WithInvitationClock overrides the service clock. Test use only.
func WithInvitationClock(s *InvitationService, now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Invite creates a pending invitation for an email address. Requires the
// manageMembers capability; granting owner additionally requires the actor to
// be an owner. At most one active invitation exists per (email, list) pair;
// an expired one is replaced.
func (s *InvitationService) Invite(ctx context.Context, actorUID, listID string, input InviteInput) (*models.PendingInvitation, error) {
	if err := validator.ValidateStruct(input); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	list, err := s.lists.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, actorUID, authz.CapManageMembers); err != nil {
		return nil, err
	}

	role := models.Role(input.Role)
	if !role.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("invalid role %q", input.Role))
	}
	actorRole, _ := list.RoleOf(actorUID)
	if !authz.CanGrant(actorRole, role) {
		return nil, apperrors.ErrRoleEscalationDenied
	}

	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewValidation("invitee email is required")
	}

	// An existing account with this email may already be a member.
	invitee, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if invitee != nil {
		if _, ok := list.RoleOf(invitee.UID); ok {
			return nil, apperrors.ErrAlreadyMember
		}
	}

	if existing, err := s.findByEmailAndList(ctx, email, listID); err != nil {
		return nil, err
	} else if existing != nil {
		if !existing.IsExpired(s.now()) {
			return nil, apperrors.ErrDuplicateInvitation
		}
		if err := s.deleteInvitation(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	invitation := models.PendingInvitation{
		Email:     email,
		ListID:    listID,
		ListName:  list.Name,
		Role:      role,
		InvitedBy: actorUID,
		InvitedAt: s.now().UTC(),
	}

	wctx, cancel := writeContext(ctx)
	err = s.db.WithContext(wctx).Create(&invitation).Error
	cancel()
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateInvitation
		}
		return nil, translateDBError(err, "create invitation")
	}

	actorName := s.users.DisplayName(ctx, actorUID)

	runSideEffects(ctx, s.log, []sideEffect{
		{"email", func(ctx context.Context) error {
			return s.sendInviteEmail(ctx, &invitation, actorName)
		}},
		{"invitee notification", func(ctx context.Context) error {
			if invitee == nil {
				return nil
			}
			content := composeNotification(models.NotificationInvitationReceived, actorName, "", list.Name)
			_, err := s.notifications.Create(ctx, CreateNotificationInput{
				UserID:  invitee.UID,
				ListID:  listID,
				Type:    models.NotificationInvitationReceived,
				Title:   content.Title,
				Message: content.Message,
				Metadata: map[string]any{
					"invitation_id": invitation.ID,
					"role":          string(role),
				},
			})
			return err
		}},
		{"member notifications", func(ctx context.Context) error {
			content := composeNotification(models.NotificationInvite, actorName, email, list.Name)
			var firstErr error
			for _, memberUID := range excludeUID(list.MemberIDs(), actorUID) {
				_, err := s.notifications.Create(ctx, CreateNotificationInput{
					UserID:  memberUID,
					ListID:  listID,
					Type:    models.NotificationInvite,
					Title:   content.Title,
					Message: content.Message,
					Metadata: map[string]any{
						"actor_user_id": actorUID,
						"email":         email,
						"role":          string(role),
					},
				})
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		}},
		{"activity", func(ctx context.Context) error {
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      listID,
				UserID:      actorUID,
				Action:      "member_invited",
				Description: fmt.Sprintf("%s invited %s as %s", actorName, email, role),
				Metadata:    map[string]any{"email": email, "role": string(role)},
			})
			return err
		}},
	})

	return &invitation, nil
}

// Accept consumes an invitation and adds the caller to the list. The caller's
// email must match the invitation's; acceptance is idempotent for users who
// are already members (their role is updated to the invited role).
func (s *InvitationService) Accept(ctx context.Context, identityUID, identityEmail, invitationID string) (*ListDTO, error) {
	invitation, err := s.resolve(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if normalizeEmail(identityEmail) != invitation.Email {
		return nil, apperrors.ErrAccessDenied.WithMessage("This invitation was issued to a different email address")
	}

	wctx, cancel := writeContext(ctx)
	err = s.db.WithContext(wctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertMemberTx(tx, invitation.ListID, identityUID, invitation.Role); err != nil {
			return err
		}
		return tx.Where("id = ?", invitation.ID).Delete(&models.PendingInvitation{}).Error
	})
	cancel()
	if err != nil {
		return nil, translateDBError(err, "accept invitation")
	}

	list, err := s.lists.loadList(ctx, invitation.ListID)
	if err != nil {
		return nil, err
	}

	memberName := s.users.DisplayName(ctx, identityUID)

	runSideEffects(ctx, s.log, []sideEffect{
		{"activity", func(ctx context.Context) error {
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      list.ID,
				UserID:      identityUID,
				Action:      "member_added",
				Description: fmt.Sprintf("%s joined the list as %s", memberName, invitation.Role),
				Metadata:    map[string]any{"role": string(invitation.Role)},
			})
			return err
		}},
		{"notifications", func(ctx context.Context) error {
			content := composeNotification(models.NotificationMemberAdded, "", memberName, list.Name)
			var firstErr error
			for _, uid := range excludeUID(list.MemberIDs(), identityUID) {
				_, err := s.notifications.Create(ctx, CreateNotificationInput{
					UserID:   uid,
					ListID:   list.ID,
					Type:     models.NotificationMemberAdded,
					Title:    content.Title,
					Message:  content.Message,
					Metadata: map[string]any{"member_uid": identityUID, "role": string(invitation.Role)},
				})
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		}},
		{"inviter notification", func(ctx context.Context) error {
			if invitation.InvitedBy == identityUID {
				return nil
			}
			content := composeNotification(models.NotificationInvitationAccepted, "", memberName, list.Name)
			_, err := s.notifications.Create(ctx, CreateNotificationInput{
				UserID:   invitation.InvitedBy,
				ListID:   list.ID,
				Type:     models.NotificationInvitationAccepted,
				Title:    content.Title,
				Message:  content.Message,
				Metadata: map[string]any{"member_uid": identityUID},
			})
			return err
		}},
		{"realtime", func(ctx context.Context) error {
			if s.hub != nil {
				s.hub.BroadcastToList(list.ID, realtime.Event{
					Event:  "member-added",
					ListID: list.ID,
					Data:   map[string]string{"list_id": list.ID, "member_uid": identityUID, "role": string(invitation.Role)},
				})
			}
			return nil
		}},
	})

	return toListDTO(list), nil
}

// Decline consumes an invitation without joining. Declining an already-gone
// invitation succeeds; the end state is identical.
func (s *InvitationService) Decline(ctx context.Context, identityEmail, invitationID string) error {
	invitation, err := s.resolve(ctx, invitationID)
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvitationExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if normalizeEmail(identityEmail) != invitation.Email {
		return apperrors.ErrAccessDenied.WithMessage("This invitation was issued to a different email address")
	}

	if err := s.deleteInvitation(ctx, invitation.ID); err != nil {
		return err
	}

	runSideEffects(ctx, s.log, []sideEffect{
		{"inviter notification", func(ctx context.Context) error {
			content := composeNotification(models.NotificationInvitationDeclined, "", invitation.Email, invitation.ListName)
			_, err := s.notifications.Create(ctx, CreateNotificationInput{
				UserID:  invitation.InvitedBy,
				ListID:  invitation.ListID,
				Type:    models.NotificationInvitationDeclined,
				Title:   content.Title,
				Message: content.Message,
			})
			return err
		}},
	})

	return nil
}

// ListForEmail returns the caller's pending, non-expired invitations.
func (s *InvitationService) ListForEmail(ctx context.Context, email string) ([]models.PendingInvitation, error) {
	rctx, cancel := readContext(ctx)
	defer cancel()

	var rows []models.PendingInvitation
	if err := s.db.WithContext(rctx).
		Where("email = ? AND invited_at > ?", normalizeEmail(email), s.now().Add(-models.InvitationTTL)).
		Order("invited_at DESC").
		Find(&rows).Error; err != nil {
		return nil, translateDBError(err, "list invitations")
	}
	return rows, nil
}

// ListForList returns a list's pending invitations for members who can manage
// membership.
func (s *InvitationService) ListForList(ctx context.Context, actorUID, listID string) ([]models.PendingInvitation, error) {
	list, err := s.lists.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, actorUID, authz.CapManageMembers); err != nil {
		return nil, err
	}

	rctx, cancel := readContext(ctx)
	defer cancel()

	var rows []models.PendingInvitation
	if err := s.db.WithContext(rctx).
		Where("list_id = ? AND invited_at > ?", listID, s.now().Add(-models.InvitationTTL)).
		Order("invited_at DESC").
		Find(&rows).Error; err != nil {
		return nil, translateDBError(err, "list invitations")
	}
	return rows, nil
}

// PurgeExpired deletes invitations past their window. Run by maintenance;
// expiry is otherwise enforced lazily at resolve time.
func (s *InvitationService) PurgeExpired(ctx context.Context) (int64, error) {
	wctx, cancel := writeContext(ctx)
	defer cancel()

	result := s.db.WithContext(wctx).
		Where("invited_at <= ?", s.now().Add(-models.InvitationTTL)).
		Delete(&models.PendingInvitation{})
	if result.Error != nil {
		return 0, translateDBError(result.Error, "purge invitations")
	}
	return result.RowsAffected, nil
}

// resolve loads an invitation and enforces lazy expiry. An expired record is
// deleted on sight and reported as expired.
func (s *InvitationService) resolve(ctx context.Context, invitationID string) (*models.PendingInvitation, error) {
	rctx, cancel := readContext(ctx)
	defer cancel()

	var invitation models.PendingInvitation
	if err := s.db.WithContext(rctx).
		Where("id = ?", invitationID).
		First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Invitation not found")
		}
		return nil, translateDBError(err, "load invitation")
	}

	if invitation.IsExpired(s.now()) {
		if err := s.deleteInvitation(ctx, invitation.ID); err != nil {
			s.log.Warn("failed to delete expired invitation",
				zap.String("invitation_id", invitation.ID),
				zap.Error(err),
			)
		}
		return nil, apperrors.ErrInvitationExpired
	}

	return &invitation, nil
}

func (s *InvitationService) findByEmailAndList(ctx context.Context, email, listID string) (*models.PendingInvitation, error) {
	rctx, cancel := readContext(ctx)
	defer cancel()

	var invitation models.PendingInvitation
	err := s.db.WithContext(rctx).
		Where("email = ? AND list_id = ?", email, listID).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateDBError(err, "find invitation")
	}
	return &invitation, nil
}

func (s *InvitationService) deleteInvitation(ctx context.Context, id string) error {
	wctx, cancel := writeContext(ctx)
	defer cancel()

	if err := s.db.WithContext(wctx).
		Where("id = ?", id).
		Delete(&models.PendingInvitation{}).Error; err != nil {
		return translateDBError(err, "delete invitation")
	}
	return nil
}

func (s *InvitationService) sendInviteEmail(ctx context.Context, invitation *models.PendingInvitation, actorName string) error {
	if s.mailer == nil {
		return nil
	}

	link := fmt.Sprintf("%s/invitations/%s", s.baseURL, invitation.ID)
	body := fmt.Sprintf(
		"%s invited you to join the list %q as %s.\n\nOpen %s to accept or decline. The invitation expires in 7 days.\n",
		actorName, invitation.ListName, invitation.Role, link,
	)

	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{invitation.Email},
		Subject: fmt.Sprintf("Invitation to join %q", invitation.ListName),
		Body:    body,
	})
	if errors.Is(err, mail.ErrSMTPDisabled) {
		return nil
	}
	return err
}

// upsertMemberTx inserts or updates a membership row inside a transaction.
// One row per (list, user) carries both membership and role, so a repeated
// accept only refreshes the role.
func upsertMemberTx(tx *gorm.DB, listID, uid string, role models.Role) error {
	member := models.ListMember{
		ListID: listID,
		UserID: uid,
		Role:   role,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "list_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"role": role}),
	}).Create(&member).Error
}
