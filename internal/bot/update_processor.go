package bot

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
	"github.com/iamwavecut/guardbot/internal/moderation"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type memberStatusChecker interface {
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

type reportReviewer interface {
	Approve(ctx context.Context, reportID string, reviewerID int64) error
	Reject(ctx context.Context, reportID string, reviewerID int64) error
	Annotate(ctx context.Context, reportID string, reviewerID int64, status, note string) error
}

// UpdateProcessor routes inbound updates: admin commands to the admin
// services, everything else in group chats through the moderation pipeline.
type UpdateProcessor struct {
	s         Service
	moderator *moderation.Moderator
	admin     *moderation.AdminService
	reviews   reportReviewer
	status    memberStatusChecker
	ownerID   int64
}

func NewUpdateProcessor(s Service, moderator *moderation.Moderator, admin *moderation.AdminService, reviews reportReviewer, status memberStatusChecker, ownerID int64) *UpdateProcessor {
	return &UpdateProcessor{
		s:         s,
		moderator: moderator,
		admin:     admin,
		reviews:   reviews,
		status:    status,
		ownerID:   ownerID,
	}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}
	msg := u.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	updateTime := time.Unix(int64(msg.Date), 0)
	if time.Since(updateTime) > UpdateTimeout {
		log.WithFields(log.Fields{
			"update_time": updateTime,
			"age":         time.Since(updateTime),
		}).Debug("Skipping outdated update")
		return nil
	}

	if msg.IsCommand() {
		return up.handleCommand(ctx, msg)
	}
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return nil
	}
	return up.moderator.Process(ctx, msg)
}

func (up *UpdateProcessor) handleCommand(ctx context.Context, msg *api.Message) error {
	command := msg.Command()
	args := strings.Fields(msg.CommandArguments())

	switch command {
	case "approve", "reject":
		return up.handleReview(ctx, msg, command, args)
	}

	isAdmin, err := up.isChatAdmin(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		return errors.WithMessage(err, "cant check admin")
	}
	if !isAdmin {
		return nil
	}

	switch command {
	case "moderation":
		return up.admin.SetEnabled(ctx, msg.Chat.ID, boolArg(args))
	case "enforce_admins":
		return up.admin.SetEnforceAdmins(ctx, msg.Chat.ID, boolArg(args))
	case "forgive":
		if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
			return nil
		}
		return up.admin.ResetUser(ctx, msg.Chat.ID, msg.ReplyToMessage.From.ID)
	case "subscribe":
		return up.admin.Subscribe(ctx, msg.From.ID, msg.Chat.ID, true, true)
	case "unsubscribe":
		return up.admin.Unsubscribe(ctx, msg.From.ID, msg.Chat.ID)
	}
	return nil
}

func (up *UpdateProcessor) handleReview(ctx context.Context, msg *api.Message, command string, args []string) error {
	if len(args) == 0 {
		return nil
	}
	reportID := args[0]
	note := strings.Join(args[1:], " ")

	var err error
	switch {
	case note != "" && command == "approve":
		err = up.reviews.Annotate(ctx, reportID, msg.From.ID, "approved", note)
	case note != "" && command == "reject":
		err = up.reviews.Annotate(ctx, reportID, msg.From.ID, "rejected", note)
	case command == "approve":
		err = up.reviews.Approve(ctx, reportID, msg.From.ID)
	default:
		err = up.reviews.Reject(ctx, reportID, msg.From.ID)
	}
	if errors.Is(err, guarderrors.ErrReportResolved) {
		log.WithField("report_id", reportID).Debug("report already resolved")
		return nil
	}
	return err
}

func (up *UpdateProcessor) isChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if up.ownerID != 0 && userID == up.ownerID {
		return true, nil
	}
	status, err := up.status.MemberStatus(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	return status == "creator" || status == "administrator", nil
}

func boolArg(args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch strings.ToLower(args[0]) {
	case "off", "false", "0", "no":
		return false
	}
	return true
}

// GetUpdatesChans polls updates into a channel, stopping on the first poll
// error or context cancellation.
func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			select {
			case <-ctx.Done():
				chErr <- ctx.Err()
				return
			default:
				updates, err := bot.GetUpdates(config)
				if err != nil {
					chErr <- err
					return
				}

				for _, update := range updates {
					if update.UpdateID >= config.Offset {
						config.Offset = update.UpdateID + 1
						select {
						case ch <- update:
						case <-ctx.Done():
							chErr <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return ch, chErr
}
