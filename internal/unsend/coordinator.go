package unsend

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-archive/internal/archive"
	"github.com/chirino/chat-archive/internal/model"
	registryblob "github.com/chirino/chat-archive/internal/registry/blob"
	registryplatform "github.com/chirino/chat-archive/internal/registry/platform"
	"github.com/chirino/chat-archive/internal/security"
	"github.com/google/uuid"
)

// State is how far an unsend request progressed.
type State string

const (
	StateLocated               State = "located"
	StateRemoteDeleteAttempted State = "remote-delete-attempted"
	StateRemoteDeleteFailed    State = "remote-delete-failed"
	StateArchiveRewritten      State = "archive-rewritten"
)

// Result codes reported when an unsend does not complete.
const (
	CodeInvalidTarget      = "invalid_target"
	CodeChatNotFound       = "chat_not_found"
	CodeBotMessageNotFound = "bot_message_not_found"
	CodeNoMessageID        = "no_message_id"
	CodeUpstreamFailed     = "upstream_failed"
)

const (
	outcomeDeleted          = "deleted"
	outcomeArchiveWriteFail = "archive_write_failed"
)

// Result describes the outcome of an unsend request.
type Result struct {
	Success     bool           `json:"success"`
	Code        string         `json:"code,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Description string         `json:"description,omitempty"`
	OperationID string         `json:"operationId"`
	RoomID      string         `json:"roomId"`
	Tier        model.Tier     `json:"tier,omitempty"`
	SourceKey   string         `json:"sourceKey,omitempty"`
	Message     *model.Message `json:"message,omitempty"`
	State       State          `json:"state,omitempty"`
}

// Coordinator removes a bot message from the live platform and then from the
// archive. The archive is only touched after the platform confirms.
type Coordinator struct {
	reader    *archive.Reader
	writer    *archive.Writer
	messenger registryplatform.Messenger
}

func NewCoordinator(reader *archive.Reader, writer *archive.Writer, messenger registryplatform.Messenger) *Coordinator {
	return &Coordinator{reader: reader, writer: writer, messenger: messenger}
}

// DeleteBotMessage unsends the bot message in roomID named by target.
//
// Failures the caller can act on (unknown room, no matching bot message,
// message without a platform id, platform rejection) come back as a Result
// with Success=false and a nil error. A non-nil error means the store failed;
// if that happens after the platform delete the message is gone remotely but
// still archived.
func (c *Coordinator) DeleteBotMessage(ctx context.Context, roomID string, target Target) (*Result, error) {
	result := &Result{OperationID: uuid.NewString(), RoomID: roomID}
	logger := log.With("op", result.OperationID, "room", roomID)

	if target.Empty() {
		return c.fail(logger, result, CodeInvalidTarget, "a message id or timestamp is required"), nil
	}

	res, err := c.reader.Resolve(ctx, roomID)
	if err != nil {
		var notFound *registryblob.NotFoundError
		if errors.As(err, &notFound) {
			return c.fail(logger, result, CodeChatNotFound, "chat not found"), nil
		}
		var validation *registryblob.ValidationError
		if errors.As(err, &validation) {
			return c.fail(logger, result, CodeInvalidTarget, validation.Message), nil
		}
		return nil, err
	}
	result.Tier = res.Tier
	result.SourceKey = res.SourceKey

	match, ok := FindBotMessage(res.Messages, target)
	if !ok {
		return c.fail(logger, result, CodeBotMessageNotFound, "no matching bot message"), nil
	}
	if match.Candidates > 1 {
		logger.Warn("Several bot messages match timestamp; using the first", "candidates", match.Candidates, "index", match.Index)
	}
	matched := match.Message
	result.Message = &matched
	result.State = StateLocated

	if !matched.HasMessageID() {
		return c.fail(logger, result, CodeNoMessageID, "message has no platform id and cannot be deleted remotely"), nil
	}
	messageID := *matched.MessageID

	result.State = StateRemoteDeleteAttempted
	logger.Info("Deleting bot message", "platform", c.messenger.Name(), "messageId", messageID, "tier", res.Tier)
	deleted, err := c.messenger.DeleteMessage(ctx, roomID, messageID)
	if err != nil {
		result.State = StateRemoteDeleteFailed
		result.Description = err.Error()
		var upstream *registryblob.UpstreamError
		if errors.As(err, &upstream) {
			result.Description = upstream.Description
		}
		return c.fail(logger, result, CodeUpstreamFailed, "platform request failed"), nil
	}
	if !deleted.OK {
		result.State = StateRemoteDeleteFailed
		result.Description = deleted.Description
		return c.fail(logger, result, CodeUpstreamFailed, "platform refused the delete"), nil
	}

	if err := c.writer.Remove(ctx, res, match.Index); err != nil {
		security.RecordUnsend(outcomeArchiveWriteFail)
		logger.Error("Message deleted remotely but archive rewrite failed", "messageId", messageID, "key", res.SourceKey, "state", result.State, "err", err)
		return nil, err
	}
	result.State = StateArchiveRewritten
	result.Success = true
	security.RecordUnsend(outcomeDeleted)
	logger.Info("Bot message unsent", "messageId", messageID, "tier", res.Tier, "key", res.SourceKey)
	return result, nil
}

func (c *Coordinator) fail(logger *log.Logger, result *Result, code, reason string) *Result {
	result.Success = false
	result.Code = code
	result.Reason = reason
	security.RecordUnsend(code)
	logger.Info("Unsend not completed", "code", code, "reason", reason, "description", result.Description)
	return result
}
