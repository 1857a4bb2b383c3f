package applescript

import (
	"context"
	"strings"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

const listRemindersScript = `on run argv
	set fs to ASCII character 31
	set rs to ASCII character 30
	set wanted to ""
	if (count of argv) > 0 then set wanted to item 1 of argv
	set out to ""
	tell application "Reminders"
		repeat with lst in lists
			set lstName to name of lst
			if wanted is "" or lstName is wanted then
				repeat with r in (reminders of lst whose completed is false)
					set rBody to body of r
					if rBody is missing value then set rBody to ""
					set out to out & (id of r) & fs & (name of r) & fs & rBody & fs & (completed of r as string) & fs & lstName & rs
				end repeat
			end if
		end repeat
	end tell
	return out
end run`

const deleteReminderScript = `on run argv
	set wanted to item 1 of argv
	tell application "Reminders"
		repeat with lst in lists
			repeat with r in reminders of lst
				if id of r is wanted then
					delete r
					return "deleted"
				end if
			end repeat
		end repeat
	end tell
	return "missing"
end run`

// Reminders reads open reminders, optionally from one list, and deletes them
// by id.
type Reminders struct {
	runner Runner
	list   string
}

func NewReminders(runner Runner, list string) *Reminders {
	return &Reminders{runner: runner, list: list}
}

func (r *Reminders) ListPending(ctx context.Context) ([]source.Item, error) {
	const op = "applescript.Reminders.ListPending"
	out, err := r.runner.Run(ctx, listRemindersScript, r.list)
	if err != nil {
		return nil, source.Failure(op, err, "failed to list reminders")
	}
	records, err := parseRecords(out, 5)
	if err != nil {
		return nil, source.Failure(op, err, "unexpected reminders output")
	}

	items := make([]source.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, source.Item{
			ID:        rec[0],
			Channel:   model.ChannelReminder,
			Title:     rec[1],
			Body:      rec[2],
			Completed: rec[3] == "true",
			Container: rec[4],
		})
	}
	return items, nil
}

func (r *Reminders) Delete(ctx context.Context, id string) error {
	const op = "applescript.Reminders.Delete"
	out, err := r.runner.Run(ctx, deleteReminderScript, id)
	if err != nil {
		return source.Failure(op, err, "failed to delete reminder '%s'", id)
	}
	if strings.TrimSpace(out) != "deleted" {
		return source.NotFound(op, id)
	}
	return nil
}
