package applescript

import (
	"context"

	"github.com/gtalwar12/second-brain-poc/internal/core/model"
	"github.com/gtalwar12/second-brain-poc/internal/source"
)

const listNotesScript = `on run argv
	set fs to ASCII character 31
	set rs to ASCII character 30
	set wanted to ""
	if (count of argv) > 0 then set wanted to item 1 of argv
	set out to ""
	tell application "Notes"
		repeat with fld in folders
			set fldName to name of fld
			if wanted is "" or fldName is wanted then
				repeat with n in notes of fld
					set out to out & (id of n) & fs & (name of n) & fs & (plaintext of n) & fs & fldName & rs
				end repeat
			end if
		end repeat
	end tell
	return out
end run`

const upsertNoteScript = `on run argv
	set folderName to item 1 of argv
	set noteTitle to item 2 of argv
	set noteBody to item 3 of argv
	tell application "Notes"
		if not (exists folder folderName) then
			make new folder with properties {name:folderName}
		end if
		set targetFolder to folder folderName
		set found to missing value
		repeat with n in notes of targetFolder
			if name of n is noteTitle then
				set found to n
				exit repeat
			end if
		end repeat
		if found is missing value then
			make new note at targetFolder with properties {name:noteTitle, body:noteBody}
		else
			set body of found to noteBody
		end if
	end tell
	return "ok"
end run`

// Notes reads notes, optionally from one folder, and creates or replaces the
// checklist note.
type Notes struct {
	runner Runner
	folder string
}

func NewNotes(runner Runner, folder string) *Notes {
	return &Notes{runner: runner, folder: folder}
}

func (n *Notes) ListPending(ctx context.Context) ([]source.Item, error) {
	const op = "applescript.Notes.ListPending"
	out, err := n.runner.Run(ctx, listNotesScript, n.folder)
	if err != nil {
		return nil, source.Failure(op, err, "failed to list notes")
	}
	records, err := parseRecords(out, 4)
	if err != nil {
		return nil, source.Failure(op, err, "unexpected notes output")
	}

	items := make([]source.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, source.Item{
			ID:        rec[0],
			Channel:   model.ChannelNote,
			Title:     rec[1],
			Body:      rec[2],
			Container: rec[3],
		})
	}
	return items, nil
}

func (n *Notes) CreateOrReplaceDocument(ctx context.Context, container, title, body string) error {
	if _, err := n.runner.Run(ctx, upsertNoteScript, container, title, body); err != nil {
		return source.Failure("applescript.Notes.CreateOrReplaceDocument", err, "failed to write note '%s/%s'", container, title)
	}
	return nil
}
