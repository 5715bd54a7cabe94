package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shhady/leadform/backend/model"
)

// File is one document picked by the user.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// UploadCoordinator runs the per-slot upload lifecycle. Each upload runs in
// its own goroutine and only ever writes its own slot.
type UploadCoordinator struct {
	store    SessionStore
	host     MediaHost
	maxBytes int64
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewUploadCoordinator(store SessionStore, host MediaHost, maxBytes int64, timeout time.Duration) *UploadCoordinator {
	return &UploadCoordinator{
		store:    store,
		host:     host,
		maxBytes: maxBytes,
		timeout:  timeout,
	}
}

// Begin validates f and starts the upload for slot. The returned submission
// reflects the slot right after the upload was accepted.
func (c *UploadCoordinator) Begin(ctx context.Context, sessionID string, slot model.SlotName, f File) (*model.Submission, error) {
	if !model.IsSlot(string(slot)) {
		return nil, ErrUnknownSlot
	}
	if c.maxBytes > 0 && (f.Size > c.maxBytes || int64(len(f.Data)) > c.maxBytes) {
		return nil, ErrFileTooLarge
	}

	if slot == model.SlotBankApproval && f.ContentType == "application/pdf" {
		return c.store.Update(ctx, sessionID, func(sub *model.Submission) error {
			if sub.Status == model.StatusSubmitting {
				return ErrSubmitInFlight
			}
			s := sub.Slot(slot)
			if s.State == model.SlotInProgress {
				return ErrSlotBusy
			}
			*s = model.Slot{
				State:    model.SlotResolved,
				Progress: 100,
				Attachment: &model.Attachment{
					Filename:    f.Filename,
					ContentType: f.ContentType,
					Data:        f.Data,
				},
			}
			return nil
		})
	}

	sub, err := c.store.Update(ctx, sessionID, func(sub *model.Submission) error {
		if sub.Status == model.StatusSubmitting {
			return ErrSubmitInFlight
		}
		s := sub.Slot(slot)
		if s.State == model.SlotInProgress {
			return ErrSlotBusy
		}
		*s = model.Slot{State: model.SlotInProgress, Progress: 1}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.run(sessionID, slot, f)

	return sub, nil
}

func (c *UploadCoordinator) run(sessionID string, slot model.SlotName, f File) {
	defer c.wg.Done()

	// The request that started the upload returns right away.
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	log := slog.With("session_id", sessionID, "slot", slot, "filename", f.Filename)
	start := time.Now()

	progress := func(pct int) {
		if pct >= 100 {
			pct = 99 // 100 is reserved for the resolved state
		}
		_, err := c.store.Update(ctx, sessionID, func(sub *model.Submission) error {
			s := sub.Slot(slot)
			if s.State != model.SlotInProgress || s.Progress == pct {
				return errUnchanged
			}
			s.Progress = pct
			return nil
		})
		if err != nil && !errors.Is(err, errUnchanged) {
			log.Debug("progress update dropped", "error", err)
		}
	}

	link, err := c.host.Upload(ctx, f.Filename, bytes.NewReader(f.Data), int64(len(f.Data)), f.ContentType, progress)

	_, uerr := c.store.Update(ctx, sessionID, func(sub *model.Submission) error {
		s := sub.Slot(slot)
		if s.State != model.SlotInProgress {
			// discarded or reset while uploading
			return errUnchanged
		}
		if err != nil {
			s.Clear()
			s.Errored = true
			return nil
		}
		*s = model.Slot{State: model.SlotResolved, Progress: 100, URL: link}
		return nil
	})

	switch {
	case err != nil:
		log.Error("upload failed", "error", err, "duration", time.Since(start))
	case uerr != nil && !errors.Is(uerr, errUnchanged):
		log.Error("failed to record upload", "error", uerr)
	default:
		log.Info("upload completed", "url", link, "duration", time.Since(start))
	}
}

// Delete clears slot. The hosted copy is removed on a best-effort basis and
// the slot is cleared even if that fails. A slot cannot be deleted while its
// upload is running or while the session is being submitted.
func (c *UploadCoordinator) Delete(ctx context.Context, sessionID string, slot model.SlotName) (*model.Submission, error) {
	if !model.IsSlot(string(slot)) {
		return nil, ErrUnknownSlot
	}

	deletable := func(sub *model.Submission) error {
		if sub.Status == model.StatusSubmitting {
			return ErrSubmitInFlight
		}
		if sub.Slot(slot).State == model.SlotInProgress {
			return ErrSlotBusy
		}
		return nil
	}

	current, err := c.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := deletable(current); err != nil {
		return nil, err
	}
	hosted := current.Slot(slot).URL
	if hosted != "" {
		if err := c.DeleteRemote(ctx, hosted); err != nil {
			slog.Warn("failed to delete hosted file", "session_id", sessionID, "slot", slot, "error", err)
		}
	}

	return c.store.Update(ctx, sessionID, func(sub *model.Submission) error {
		if err := deletable(sub); err != nil {
			return err
		}
		if sub.Slot(slot).URL != hosted {
			// re-selected between the lookup and this update
			return ErrSlotBusy
		}
		sub.Slot(slot).Clear()
		return nil
	})
}

// DeleteRemote removes a previously hosted file by its URL.
func (c *UploadCoordinator) DeleteRemote(ctx context.Context, rawURL string) error {
	id := PublicIDFromURL(rawURL)
	if id == "" {
		return fmt.Errorf("%w: no public id in %q", ErrDeleteFailed, rawURL)
	}
	return c.host.Delete(ctx, id)
}

// Wait blocks until all running uploads have finished.
func (c *UploadCoordinator) Wait() {
	c.wg.Wait()
}

// errUnchanged aborts a store update without committing it.
var errUnchanged = errors.New("unchanged")
