package entities

import (
	"worksync/internal/domain/entity"
)

const typeEnum = "work,progress_log,comment,attachment"

type createInput struct {
	Type string        `path:"type" enum:"work,progress_log,comment,attachment" doc:"Тип сущности"`
	Body entity.Fields `doc:"Поля сущности; дочерние типы передают ровно один внешний ключ родителя"`
}

type findInput struct {
	Type string `path:"type" enum:"work,progress_log,comment,attachment"`
	ID   int64  `path:"id" minimum:"1"`
}

type updateInput struct {
	Type string        `path:"type" enum:"work,progress_log,comment,attachment"`
	ID   int64         `path:"id" minimum:"1"`
	Body entity.Fields `doc:"Изменяемые поля; id и внешние ключи игнорируются"`
}

type deleteInput struct {
	Type string `path:"type" enum:"work,progress_log,comment,attachment"`
	ID   int64  `path:"id" minimum:"1"`
}

type response struct {
	ID     int64  `json:"id,omitempty"`
	Status string `json:"status" example:"Ok"`
}

type output struct {
	Body response
}

type findOutput struct {
	Body entity.Fields
}

type deleteOutput struct{}
