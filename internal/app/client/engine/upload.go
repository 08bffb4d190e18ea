package engine

import (
	"context"
	"errors"
	"fmt"

	"worksync/internal/domain/entity"
	"worksync/internal/domain/queue"
)

// upload двухфазная загрузка вложения: разрешение и передача байтов, затем создание метаданных
func (e *Engine) upload(ctx context.Context, item *queue.Item, ent *entity.Entity) (int64, error) {
	if ent.Resolved() {
		return ent.RemoteID, e.resolved(ctx, ent, ent.Parent)
	}

	up := ent.Upload
	if up == nil {
		return 0, errors.New("у вложения нет данных для загрузки")
	}

	// Байты уже в хранилище с прошлой попытки: остается только создать метаданные
	if up.Status != entity.UploadUploaded || up.FileURL == "" {
		if err := e.transfer(ctx, item, ent); err != nil {
			return 0, err
		}
	}

	parent, err := e.resolveParent(ctx, ent)
	if err != nil {
		return 0, err
	}

	fields, err := entity.DecodeFields(item.Payload)
	if err != nil {
		return 0, err
	}
	fields["file_url"] = up.FileURL
	fields["file_name"] = up.FileName
	fields["mime_type"] = up.MimeType
	fields["size"] = up.Size

	payload, err := entity.RemotePayload(fields, parent)
	if err != nil {
		return 0, err
	}

	remoteID, err := e.gateway.Create(ctx, entity.TypeAttachment, payload)
	if err != nil {
		return 0, fmt.Errorf("метаданные вложения %s: %w", ent.TempID, err)
	}

	ent.RemoteID = remoteID
	ent.Fields = fields
	return remoteID, e.resolved(ctx, ent, parent)
}

// transfer фазы 1 и 2. Статус uploaded ставится только после успешного завершения передачи
func (e *Engine) transfer(ctx context.Context, item *queue.Item, ent *entity.Entity) error {
	up := ent.Upload

	up.Progress = 0
	up.Status = entity.UploadUploading
	if err := e.entities.UpdateUpload(ctx, ent.LocalKey, 0, entity.UploadUploading); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalStore, err)
	}

	ticket, err := e.gateway.RequestUpload(ctx, up.FileName, up.MimeType)
	if err != nil {
		return e.transferFailed(ctx, ent, fmt.Errorf("разрешение на загрузку %s: %w", up.FileName, err))
	}

	progress := 0
	finished := false
	for ev := range e.gateway.Transfer(ctx, ticket.UploadURL, up.MimeType, up.Payload) {
		if ev.Err != nil {
			return e.transferFailed(ctx, ent, fmt.Errorf("передача %s: %w", up.FileName, ev.Err))
		}
		if ev.Done {
			finished = true
			break
		}
		// Прогресс только растет и не достигает 100 до завершения передачи
		if ev.Progress <= progress || ev.Progress >= 100 {
			continue
		}
		progress = ev.Progress
		up.Progress = progress
		if err := e.entities.UpdateUpload(ctx, ent.LocalKey, progress, entity.UploadUploading); err != nil {
			return fmt.Errorf("%w: %w", ErrLocalStore, err)
		}
		e.emit(Event{Kind: EventProgress, Item: *item, Progress: progress})
	}

	if !finished {
		return e.transferFailed(ctx, ent, fmt.Errorf("передача %s: %w", up.FileName, ErrTransferInterrupted))
	}

	if err := e.entities.CompleteUpload(ctx, ent.LocalKey, ticket.PublicURL); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalStore, err)
	}
	up.Progress = 100
	up.Status = entity.UploadUploaded
	up.FileURL = ticket.PublicURL
	e.emit(Event{Kind: EventProgress, Item: *item, Progress: 100})

	e.log.Debug("Файл загружен",
		"temp_id", ent.TempID,
		"file_name", up.FileName,
		"size", up.Size,
		"public_url", ticket.PublicURL,
	)

	return nil
}

func (e *Engine) transferFailed(ctx context.Context, ent *entity.Entity, cause error) error {
	ent.Upload.Status = entity.UploadError
	if err := e.entities.UpdateUpload(ctx, ent.LocalKey, ent.Upload.Progress, entity.UploadError); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalStore, err)
	}
	return cause
}
