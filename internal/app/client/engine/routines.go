package engine

import (
	"context"
	"errors"
	"fmt"

	"worksync/internal/domain/entity"
	"worksync/internal/domain/queue"
)

// dispatch выбирает процедуру синхронизации по типу сущности и операции
func (e *Engine) dispatch(ctx context.Context, item *queue.Item) (int64, error) {
	ent, err := e.lookup(ctx, item)
	if err != nil {
		return 0, err
	}

	now := e.now()
	if err := e.entities.SetSyncState(ctx, ent.Type, ent.LocalKey, entity.SyncSyncing, ent.SyncError, &now); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLocalStore, err)
	}
	ent.SyncStatus = entity.SyncSyncing
	ent.LastSyncAttempt = &now

	switch {
	case ent.Type == entity.TypeAttachment && (item.Operation == queue.OpUpload || item.Operation == queue.OpCreate):
		return e.upload(ctx, item, ent)
	case item.Operation == queue.OpCreate:
		return e.create(ctx, item, ent)
	case item.Operation == queue.OpUpdate:
		return ent.RemoteID, e.update(ctx, item, ent)
	case item.Operation == queue.OpDelete:
		return ent.RemoteID, e.delete(ctx, ent)
	}

	return 0, fmt.Errorf("неизвестная операция %q для %s", item.Operation, item.EntityType)
}

func (e *Engine) create(ctx context.Context, item *queue.Item, ent *entity.Entity) (int64, error) {
	// Сущность уже создана удаленно, но элемент не успел завершиться
	if ent.Resolved() {
		return ent.RemoteID, e.resolved(ctx, ent, ent.Parent)
	}

	fields, err := entity.DecodeFields(item.Payload)
	if err != nil {
		return 0, err
	}

	parent, err := e.resolveParent(ctx, ent)
	if err != nil {
		return 0, err
	}

	payload, err := entity.RemotePayload(fields, parent)
	if err != nil {
		return 0, err
	}

	remoteID, err := e.gateway.Create(ctx, ent.Type, payload)
	if err != nil {
		return 0, fmt.Errorf("создание %s %s: %w", ent.Type, ent.TempID, err)
	}

	ent.RemoteID = remoteID
	return remoteID, e.resolved(ctx, ent, parent)
}

// resolved записывает постоянный идентификатор и переводит детей с tempId на remoteId
func (e *Engine) resolved(ctx context.Context, ent *entity.Entity, parent *entity.ParentRef) error {
	if err := e.synced(ctx, ent, parent); err != nil {
		return err
	}
	if ent.Upload != nil {
		ent.Upload.Payload = nil
	}

	if ent.TempID == "" {
		return nil
	}

	for _, child := range ent.Type.Dependents() {
		n, err := e.entities.ReassignParent(ctx, child, entity.ParentKind(ent.Type), ent.TempID, ent.RemoteID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLocalStore, err)
		}
		if n > 0 {
			e.log.Debug("Дочерние записи переведены на постоянный идентификатор",
				"parent_type", ent.Type,
				"child_type", child,
				"temp_id", ent.TempID,
				"remote_id", ent.RemoteID,
				"count", n,
			)
		}
	}

	return nil
}

func (e *Engine) update(ctx context.Context, item *queue.Item, ent *entity.Entity) error {
	if !ent.Resolved() {
		return fmt.Errorf("%w: %s %s еще не создан", ErrDependencyNotReady, ent.Type, ent.TempID)
	}

	fields, err := entity.DecodeFields(item.Payload)
	if err != nil {
		return err
	}

	parent, err := e.resolveParent(ctx, ent)
	if err != nil {
		return err
	}

	patch, err := entity.RemotePayload(fields, parent)
	if err != nil {
		return err
	}

	if err := e.gateway.Update(ctx, ent.Type, ent.RemoteID, patch); err != nil {
		return fmt.Errorf("обновление %s %d: %w", ent.Type, ent.RemoteID, err)
	}

	return e.synced(ctx, ent, parent)
}

func (e *Engine) delete(ctx context.Context, ent *entity.Entity) error {
	if !ent.Resolved() {
		return fmt.Errorf("%w: %s %s еще не создан", ErrDependencyNotReady, ent.Type, ent.TempID)
	}

	if err := e.gateway.Delete(ctx, ent.Type, ent.RemoteID); err != nil {
		return fmt.Errorf("удаление %s %d: %w", ent.Type, ent.RemoteID, err)
	}

	return e.synced(ctx, ent, ent.Parent)
}

// synced пишет только результат синхронизации; поля и признак удаления остаются как есть в хранилище
func (e *Engine) synced(ctx context.Context, ent *entity.Entity, parent *entity.ParentRef) error {
	if err := e.entities.MarkSynced(ctx, ent.Type, ent.LocalKey, ent.RemoteID, parent); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalStore, err)
	}
	ent.Parent = parent
	ent.SyncStatus = entity.SyncSynced
	ent.SyncError = ""
	return nil
}

// resolveParent возвращает ссылку на родителя с постоянным идентификатором или ErrDependencyNotReady
func (e *Engine) resolveParent(ctx context.Context, ent *entity.Entity) (*entity.ParentRef, error) {
	p := ent.Parent
	if p == nil || p.Ref.Resolved() {
		return p, nil
	}

	parent, err := e.entities.FindByTempID(ctx, p.Kind.Type(), p.Ref.TempID)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("%w: родитель %s не найден", ErrDependencyNotReady, p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalStore, err)
	}

	if !parent.Resolved() {
		return nil, fmt.Errorf("%w: родитель %s еще не синхронизирован", ErrDependencyNotReady, p)
	}

	return &entity.ParentRef{Kind: p.Kind, Ref: entity.RemoteRef(parent.RemoteID)}, nil
}
