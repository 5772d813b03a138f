// Package handler turns inbound Telegram messages into ledger commands.
// It is a deliberately thin surface: plain text in, plain text out.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shift-tracker-bot/internal/apperr"
	"shift-tracker-bot/internal/command"
	"shift-tracker-bot/internal/models"
	"shift-tracker-bot/internal/service"
	"shift-tracker-bot/pkg/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	client     *telegram.Client
	dispatcher *command.Dispatcher
	logger     *logrus.Logger

	// adminIDs hold the privileged chat ids.
	adminIDs map[int64]bool
}

func NewHandler(client *telegram.Client, dispatcher *command.Dispatcher, adminIDs []int64, logger *logrus.Logger) *Handler {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Handler{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
		adminIDs:   admins,
	}
}

func (h *Handler) HandleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		h.handleMessage(update.Message)
	}
}

func (h *Handler) handleMessage(msg *tgbotapi.Message) {
	cmd, err := h.parse(msg)
	if err != nil {
		h.reply(msg.Chat.ID, err.Error())
		return
	}
	if cmd == nil {
		return
	}

	result, err := h.dispatcher.Dispatch(*cmd)
	if err != nil {
		h.logger.WithError(err).WithField("chat_id", msg.Chat.ID).Debug("Command rejected")
		h.reply(msg.Chat.ID, describeError(err))
		return
	}

	h.reply(msg.Chat.ID, describeResult(result))
}

// parse maps "/shift start <type>"-style messages onto command variants.
// Returns (nil, nil) for text that is not a command.
func (h *Handler) parse(msg *tgbotapi.Message) (*command.Command, error) {
	// Channel and anonymous posts carry no sender; nothing to act as.
	if msg.From == nil {
		return nil, nil
	}

	fields := strings.Fields(msg.Text)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "/") {
		return nil, nil
	}

	actor := service.Actor{
		UserID:     strconv.FormatInt(msg.From.ID, 10),
		Privileged: h.adminIDs[msg.From.ID],
	}
	cmd := &command.Command{
		TenantID: strconv.FormatInt(msg.Chat.ID, 10),
		Actor:    actor,
	}

	verb := fields[0] + " " + fields[1]
	args := fields[2:]

	switch verb {
	case "/shift start":
		cmd.Kind = command.KindStartShift
		cmd.ShiftType = strings.Join(args, " ")
	case "/shift pause":
		cmd.Kind = command.KindPauseShift
		return withShiftID(cmd, args)
	case "/shift resume":
		cmd.Kind = command.KindResumeShift
		return withShiftID(cmd, args)
	case "/shift end":
		cmd.Kind = command.KindEndShift
		return withShiftID(cmd, args)
	case "/shift forceend":
		cmd.Kind = command.KindForceEndShift
		return withShiftID(cmd, args)
	case "/shift adjust":
		cmd.Kind = command.KindAdjustShift
		return withAdjustment(cmd, args)
	case "/shift list":
		cmd.Kind = command.KindListShifts
		cmd.Limit = 10
	case "/shift leaderboard":
		cmd.Kind = command.KindLeaderboard
		cmd.Page = 1
		cmd.PerPage = 10
		if len(args) > 0 {
			page, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("bad page %q", args[0])
			}
			cmd.Page = page
			args = args[1:]
		}
		cmd.TypeFilter = strings.Join(args, " ")
	case "/shift delete":
		cmd.Kind = command.KindDeleteShift
		return withShiftID(cmd, args)
	case "/shift types":
		cmd.Kind = command.KindListShiftTypes
	case "/loa request":
		cmd.Kind = command.KindRequestLoA
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: /loa request <duration> [reason]")
		}
		cmd.Duration = args[0]
		cmd.Reason = strings.Join(args[1:], " ")
	case "/loa approve":
		cmd.Kind = command.KindApproveLoA
		return withLoAID(cmd, args)
	case "/loa deny":
		cmd.Kind = command.KindDenyLoA
		return withLoAID(cmd, args)
	case "/loa end":
		cmd.Kind = command.KindForceEndLoA
		return withLoAID(cmd, args)
	case "/loa list":
		cmd.Kind = command.KindListLoA
		cmd.Limit = 10
	case "/loa pending":
		cmd.Kind = command.KindListPendingLoA
		cmd.Limit = 25
	case "/settings show":
		cmd.Kind = command.KindShowSettings
	case "/settings oneactive":
		cmd.Kind = command.KindUpdateSettings
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return nil, fmt.Errorf("usage: /settings oneactive on|off")
		}
		enabled := args[0] == "on"
		cmd.Mutate = func(s *models.TenantSettings) { s.OneActiveShift = enabled }
	case "/settings requirement":
		cmd.Kind = command.KindUpdateSettings
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: /settings requirement <minutes>")
		}
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("bad minute count %q", args[0])
		}
		cmd.Mutate = func(s *models.TenantSettings) { s.RequirementMinutes = minutes }
	case "/settings report":
		cmd.Kind = command.KindUpdateSettings
		if len(args) != 3 {
			return nil, fmt.Errorf("usage: /settings report <HH:MM> <days> <channel>")
		}
		days, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("bad day count %q", args[1])
		}
		reportTime, channel := args[0], args[2]
		cmd.Mutate = func(s *models.TenantSettings) {
			s.ReportTime = reportTime
			s.ReportIntervalDays = days
			s.ReportChannel = channel
		}
	case "/report run":
		cmd.Kind = command.KindRunReport
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: /report run <days> [type]")
		}
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("bad day count %q", args[0])
		}
		cmd.WindowDays = days
		cmd.TypeFilter = strings.Join(args[1:], " ")
	default:
		return nil, nil
	}

	return cmd, nil
}

func withShiftID(cmd *command.Command, args []string) (*command.Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("shift id required")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad shift id %q", args[0])
	}
	cmd.ShiftID = uint(id)
	return cmd, nil
}

// withAdjustment parses "<id> add|set <seconds>" or "<id> reset".
func withAdjustment(cmd *command.Command, args []string) (*command.Command, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /shift adjust <id> add|set <seconds> or /shift adjust <id> reset")
	}
	if _, err := withShiftID(cmd, args[:1]); err != nil {
		return nil, err
	}

	switch args[1] {
	case "reset":
		cmd.Adjustment = service.Adjustment{Kind: service.AdjustReset}
		return cmd, nil
	case "add", "set":
		if len(args) < 3 {
			return nil, fmt.Errorf("usage: /shift adjust <id> %s <seconds>", args[1])
		}
		seconds, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad second count %q", args[2])
		}
		kind := service.AdjustDelta
		if args[1] == "set" {
			kind = service.AdjustSet
		}
		cmd.Adjustment = service.Adjustment{Kind: kind, Seconds: seconds}
		return cmd, nil
	}
	return nil, fmt.Errorf("unknown adjustment %q: want add, set or reset", args[1])
}

func withLoAID(cmd *command.Command, args []string) (*command.Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("leave id required")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad leave id %q", args[0])
	}
	cmd.LoAID = uint(id)
	if len(args) > 1 {
		cmd.Note = strings.Join(args[1:], " ")
	}
	return cmd, nil
}

func describeResult(result *command.Result) string {
	switch {
	case result.Shift != nil:
		return fmt.Sprintf("Shift #%d is %s. Total: %s",
			result.Shift.ID, result.Shift.Status, result.Shift.FormatTotal())
	case result.LoA != nil:
		return fmt.Sprintf("Leave #%d is %s.", result.LoA.ID, result.LoA.Status)
	case result.Report != nil:
		return fmt.Sprintf("Report generated: %d met, %d not met, %d on leave.",
			len(result.Report.Met), len(result.Report.NotMet), len(result.Report.OnLeave))
	case result.Settings != nil:
		s := result.Settings
		return fmt.Sprintf("Requirement: %d min. One active shift: %t. Report: %s every %d day(s).",
			s.RequirementMinutes, s.OneActiveShift, orUnset(s.ReportTime), s.ReportIntervalDays)
	case result.Shifts != nil:
		lines := make([]string, 0, len(result.Shifts)+1)
		lines = append(lines, "Your shifts:")
		for _, s := range result.Shifts {
			lines = append(lines, fmt.Sprintf("#%d %s %s • %s", s.ID, s.Type, s.Status, s.FormatTotal()))
		}
		if len(result.Shifts) == 0 {
			lines = append(lines, "none")
		}
		return strings.Join(lines, "\n")
	case result.Leaderboard != nil:
		lines := make([]string, 0, len(result.Leaderboard)+1)
		lines = append(lines, "Leaderboard:")
		for i, row := range result.Leaderboard {
			d := time.Duration(row.TotalSeconds) * time.Second
			lines = append(lines, fmt.Sprintf("%d. %s • %s", i+1, row.UserID, d))
		}
		if len(result.Leaderboard) == 0 {
			lines = append(lines, "no shifts recorded")
		}
		return strings.Join(lines, "\n")
	case result.Leaves != nil:
		lines := make([]string, 0, len(result.Leaves)+1)
		lines = append(lines, "Leaves:")
		for _, l := range result.Leaves {
			lines = append(lines, fmt.Sprintf("#%d %s %s • ends %s",
				l.ID, l.UserID, l.Status, time.Unix(l.EndTS, 0).Format("2006-01-02")))
		}
		if len(result.Leaves) == 0 {
			lines = append(lines, "none")
		}
		return strings.Join(lines, "\n")
	case result.Types != nil:
		lines := make([]string, 0, len(result.Types)+1)
		lines = append(lines, "Shift types:")
		for _, st := range result.Types {
			lines = append(lines, st.Name)
		}
		return strings.Join(lines, "\n")
	}
	return "Done."
}

func orUnset(v string) string {
	if v == "" {
		return "unset"
	}
	return v
}

func describeError(err error) string {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return "Not found."
	case errors.Is(err, apperr.ErrForbidden):
		return "You may not do that."
	case errors.Is(err, apperr.ErrInvalidState):
		return "That action is not valid right now."
	case errors.Is(err, apperr.ErrPolicyViolation), errors.Is(err, apperr.ErrInvalidArgument):
		return err.Error()
	}
	return "An error occurred."
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.client.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.WithError(err).Warn("Reply failed")
	}
}
