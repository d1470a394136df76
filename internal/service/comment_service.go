package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"modhub/internal/featureflags"
	"modhub/internal/models"
	"modhub/internal/observability"
	"modhub/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const defaultMaxCommentLength = 5000

// ModerationFlag reports whether new root comments require approval.
type ModerationFlag interface {
	ModerationEnabled(ctx context.Context) bool
}

// CommentDeps wires the collaborators of a CommentService.
type CommentDeps struct {
	Comments repository.CommentRepository
	Mods     repository.ModRepository
	Users    repository.UserRepository
	Votes    repository.VoteRepository
	Filter   *ContentFilter
	Throttle *AbuseThrottle
	Timeouts *TimeoutEnforcer
	Settings ModerationFlag
	Auditor  Auditor
	Flags    *featureflags.Manager
	Clock    Clock
	// MaxContentLength caps comment length in characters. Zero means 5000.
	MaxContentLength int
}

// CommentService runs the comment lifecycle: submission checks, replies,
// listing, and the pending/approved/rejected transitions.
type CommentService struct {
	comments  repository.CommentRepository
	mods      repository.ModRepository
	users     repository.UserRepository
	votes     repository.VoteRepository
	filter    *ContentFilter
	throttle  *AbuseThrottle
	timeouts  *TimeoutEnforcer
	settings  ModerationFlag
	auditor   Auditor
	flags     *featureflags.Manager
	clock     Clock
	maxLength int
}

type SubmitCommentInput struct {
	Actor   Actor
	ModID   uint
	Content string
	Rating  *int
}

type ReplyInput struct {
	Actor    Actor
	ParentID uint
	// ModID must match the parent's mod. Zero takes the parent's.
	ModID   uint
	Content string
}

type ListCommentsInput struct {
	ModID uint
	// Viewer is the zero Actor for anonymous requests.
	Viewer         Actor
	IncludeReplies bool
}

func NewCommentService(deps CommentDeps) *CommentService {
	s := &CommentService{
		comments:  deps.Comments,
		mods:      deps.Mods,
		users:     deps.Users,
		votes:     deps.Votes,
		filter:    deps.Filter,
		throttle:  deps.Throttle,
		timeouts:  deps.Timeouts,
		settings:  deps.Settings,
		auditor:   deps.Auditor,
		flags:     deps.Flags,
		clock:     deps.Clock,
		maxLength: deps.MaxContentLength,
	}
	if s.auditor == nil {
		s.auditor = NopAuditor{}
	}
	if s.maxLength <= 0 {
		s.maxLength = defaultMaxCommentLength
	}
	return s
}

// Submit creates a root comment on a mod. Every check runs before anything is
// written; a forbidden-word hit writes only the punitive timeout.
func (s *CommentService) Submit(ctx context.Context, in SubmitCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.Submit",
		attribute.Int64("mod.id", int64(in.ModID)),
		attribute.Int64("user.id", int64(in.Actor.UserID)),
	)
	defer func() {
		recordSubmission(comment, err)
		observability.EndSpan(span, err)
	}()

	content, err := s.validateContent(in.Content)
	if err != nil {
		return nil, err
	}
	if _, err := s.mods.GetByID(ctx, in.ModID); err != nil {
		return nil, translateStoreError(err, "Mod", in.ModID, "load mod")
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}
	if err := s.rejectMalicious(ctx, in.Actor, fmt.Sprintf("mod:%d", in.ModID), content); err != nil {
		return nil, err
	}
	if err := checkBanned(ctx, s.users, in.Actor.UserID); err != nil {
		return nil, err
	}
	if err := s.timeouts.Check(ctx, in.Actor.UserID); err != nil {
		return nil, err
	}
	if err := s.throttle.Check(ctx, in.Actor.UserID); err != nil {
		return nil, err
	}
	if err := s.enforceWordPolicy(ctx, in.Actor, content); err != nil {
		return nil, err
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}
	comment = &models.Comment{
		ModID:      in.ModID,
		UserID:     in.Actor.UserID,
		Content:    content,
		Rating:     in.Rating,
		IsApproved: !s.settings.ModerationEnabled(ctx),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.auditor.Record(ctx, NewAuditEvent(AuditCommentCreate, in.Actor, "comment", comment.ID, map[string]any{
		"mod_id": comment.ModID,
		"state":  comment.State(),
	}))
	return comment, nil
}

// Reply attaches an approved reply to an approved comment. Replies never
// carry a rating. Blocklist, throttle and timeout checks only run when the
// reply_filter flag is on for the author.
func (s *CommentService) Reply(ctx context.Context, in ReplyInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.Reply",
		attribute.Int64("comment.parent_id", int64(in.ParentID)),
		attribute.Int64("user.id", int64(in.Actor.UserID)),
	)
	defer func() {
		recordSubmission(comment, err)
		observability.EndSpan(span, err)
	}()

	content, err := s.validateContent(in.Content)
	if err != nil {
		return nil, err
	}

	parent, err := s.comments.GetByID(ctx, in.ParentID)
	if err != nil {
		return nil, translateStoreError(err, "Comment", in.ParentID, "load parent comment")
	}
	if !canSee(in.Actor, parent) {
		return nil, models.NewNotFoundError("Comment", in.ParentID)
	}
	// Replies are created approved, so the parent must already be approved.
	if !parent.IsApproved {
		return nil, models.NewInvalidStateError("Replies are only allowed on approved comments")
	}
	if in.ModID != 0 && in.ModID != parent.ModID {
		return nil, models.NewValidationError("Parent comment belongs to a different mod")
	}

	if err := s.rejectMalicious(ctx, in.Actor, fmt.Sprintf("comment:%d", parent.ID), content); err != nil {
		return nil, err
	}
	if err := checkBanned(ctx, s.users, in.Actor.UserID); err != nil {
		return nil, err
	}
	if s.flags.Enabled(featureflags.ReplyFilter, in.Actor.UserID) {
		if err := s.timeouts.Check(ctx, in.Actor.UserID); err != nil {
			return nil, err
		}
		if err := s.throttle.Check(ctx, in.Actor.UserID); err != nil {
			return nil, err
		}
		if err := s.enforceWordPolicy(ctx, in.Actor, content); err != nil {
			return nil, err
		}
	}

	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}
	parentID := parent.ID
	replyTo := parent.UserID
	comment = &models.Comment{
		ModID:         parent.ModID,
		UserID:        in.Actor.UserID,
		Content:       content,
		ParentID:      &parentID,
		ReplyToUserID: &replyTo,
		IsApproved:    true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}

	s.auditor.Record(ctx, NewAuditEvent(AuditCommentReply, in.Actor, "comment", comment.ID, map[string]any{
		"mod_id":    comment.ModID,
		"parent_id": parentID,
	}))
	return comment, nil
}

// List returns the comments the viewer may see on a mod: approved ones plus
// the viewer's own pending ones, or everything for moderators. With
// IncludeReplies the result is threaded, otherwise it holds root comments only.
func (s *CommentService) List(ctx context.Context, in ListCommentsInput) ([]*models.CommentNode, error) {
	if _, err := s.mods.GetByID(ctx, in.ModID); err != nil {
		return nil, translateStoreError(err, "Mod", in.ModID, "load mod")
	}

	flat, err := s.comments.List(ctx, repository.CommentListQuery{
		ModID:         in.ModID,
		ViewerID:      in.Viewer.UserID,
		IncludeHidden: in.Viewer.IsPrivileged(),
		RootsOnly:     !in.IncludeReplies,
	})
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	if in.Viewer.UserID != 0 && s.votes != nil && s.flags.Enabled(featureflags.ViewerVotes, in.Viewer.UserID) {
		if err := s.attachViewerVotes(ctx, in.Viewer.UserID, flat); err != nil {
			return nil, err
		}
	}

	if in.IncludeReplies {
		return BuildTree(flat), nil
	}
	return FlattenRoots(flat), nil
}

func (s *CommentService) attachViewerVotes(ctx context.Context, viewerID uint, comments []*models.Comment) error {
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	votes, err := s.votes.VotesByUser(ctx, viewerID, ids)
	if err != nil {
		return fmt.Errorf("load viewer votes: %w", err)
	}
	for _, c := range comments {
		c.UserVote = votes[c.ID]
	}
	return nil
}

// ListPending returns the moderation queue, oldest first.
func (s *CommentService) ListPending(ctx context.Context, actor Actor, modID *uint, limit, offset int) ([]*models.Comment, error) {
	if !actor.IsPrivileged() {
		return nil, models.NewForbiddenError("Moderator role required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	comments, err := s.comments.ListPending(ctx, modID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending comments: %w", err)
	}
	return comments, nil
}

// Approve moves a PENDING comment to APPROVED and bumps the mod's comment count.
func (s *CommentService) Approve(ctx context.Context, actor Actor, commentID uint) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.Approve", attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()

	if !actor.IsPrivileged() {
		return nil, models.NewForbiddenError("Moderator role required")
	}
	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	comment, err = s.comments.Approve(ctx, commentID, now)
	if err != nil {
		return nil, translateStoreError(err, "Comment", commentID, "approve comment")
	}

	observability.ModerationTransitions.WithLabelValues("approve").Inc()
	s.auditor.Record(ctx, NewAuditEvent(AuditCommentApprove, actor, "comment", comment.ID, map[string]any{
		"mod_id":    comment.ModID,
		"author_id": comment.UserID,
	}))
	return comment, nil
}

// Reject moves a PENDING comment to REJECTED. No counters change.
func (s *CommentService) Reject(ctx context.Context, actor Actor, commentID uint, reason string) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.Reject", attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()

	if !actor.IsPrivileged() {
		return nil, models.NewForbiddenError("Moderator role required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("Rejection reason is required")
	}
	now, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	comment, err = s.comments.Reject(ctx, commentID, actor.UserID, reason, now)
	if err != nil {
		return nil, translateStoreError(err, "Comment", commentID, "reject comment")
	}

	observability.ModerationTransitions.WithLabelValues("reject").Inc()
	s.auditor.Record(ctx, NewAuditEvent(AuditCommentReject, actor, "comment", comment.ID, map[string]any{
		"mod_id":    comment.ModID,
		"author_id": comment.UserID,
		"reason":    reason,
	}))
	return comment, nil
}

// Delete removes a comment and its votes. Only the author or a privileged
// actor may delete.
func (s *CommentService) Delete(ctx context.Context, actor Actor, commentID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "CommentService.Delete", attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()

	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return translateStoreError(err, "Comment", commentID, "load comment")
	}
	if comment.UserID != actor.UserID && !actor.IsPrivileged() {
		return models.NewForbiddenError("You can only delete your own comments")
	}

	deleted, err := s.comments.Delete(ctx, commentID)
	if err != nil {
		return translateStoreError(err, "Comment", commentID, "delete comment")
	}

	observability.ModerationTransitions.WithLabelValues("delete").Inc()
	s.auditor.Record(ctx, NewAuditEvent(AuditCommentDelete, actor, "comment", deleted.ID, map[string]any{
		"mod_id":    deleted.ModID,
		"author_id": deleted.UserID,
		"state":     deleted.State(),
	}))
	return nil
}

func (s *CommentService) validateContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", models.NewEmptyContentError()
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return "", models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", s.maxLength))
	}
	return content, nil
}

func (s *CommentService) rejectMalicious(ctx context.Context, actor Actor, target, content string) error {
	if !IsMalicious(content) {
		return nil
	}
	logSecurityEvent(ctx, actor, target, content)
	s.auditor.Record(ctx, NewAuditEvent(AuditMaliciousContent, actor, "user", actor.UserID, map[string]any{
		"target": target,
	}))
	return models.NewMaliciousContentError()
}

// enforceWordPolicy times the author out for the highest matched severity and
// then rejects. If the timeout cannot be written the submission fails with an
// internal error instead.
func (s *CommentService) enforceWordPolicy(ctx context.Context, actor Actor, content string) error {
	matches, err := s.filter.DetectForbiddenWords(ctx, content)
	if err != nil {
		return fmt.Errorf("detect forbidden words: %w", err)
	}
	if len(matches) == 0 {
		return nil
	}

	severity := ClassifySeverity(matches)
	duration := s.timeouts.Policy().Duration(severity)
	reason := fmt.Sprintf("Used %s-severity forbidden language", severity)

	timeout, err := s.timeouts.Apply(ctx, actor.UserID, reason, severity, duration, nil)
	if err != nil {
		return fmt.Errorf("apply forbidden-word timeout: %w", err)
	}

	words := make([]string, 0, len(matches))
	for _, m := range matches {
		words = append(words, m.Word)
	}
	s.auditor.Record(ctx, NewAuditEvent(AuditUserTimeout, actor, "user", actor.UserID, map[string]any{
		"source":        "forbidden_words",
		"severity":      severity.String(),
		"timeout_until": timeout.TimeoutUntil.Format(time.RFC3339),
		"words":         words,
	}))
	return models.NewForbiddenWordsError(reason, severity, int(duration/time.Minute))
}

// canSee reports whether actor may view (and so reply to) comment.
func canSee(actor Actor, comment *models.Comment) bool {
	if comment.IsApproved || actor.IsPrivileged() {
		return true
	}
	return comment.UserID == actor.UserID && actor.UserID != 0 && comment.RejectedAt == nil
}

func checkBanned(ctx context.Context, users repository.UserRepository, userID uint) error {
	banned, err := users.IsBanned(ctx, userID)
	if err != nil {
		return fmt.Errorf("check ban status: %w", err)
	}
	if banned {
		return models.NewBannedError()
	}
	return nil
}

// translateStoreError turns repository sentinels into API errors and wraps
// everything else.
func translateStoreError(err error, resource string, id uint, op string) error {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, repository.ErrStateConflict):
		return models.NewInvalidStateError(fmt.Sprintf("%s %d is no longer pending", resource, id))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func recordSubmission(comment *models.Comment, err error) {
	outcome := "error"
	var appErr *models.AppError
	switch {
	case err == nil && comment != nil:
		outcome = strings.ToLower(string(comment.State()))
	case errors.As(err, &appErr):
		outcome = strings.ToLower(appErr.Code)
	}
	observability.CommentSubmissions.WithLabelValues(outcome).Inc()
}
