package upload

import (
	"time"
)

type requestInput struct {
	Body requestBody
}

type requestBody struct {
	FileName string `json:"file_name" minLength:"1" maxLength:"255" doc:"Имя файла без пути"`
	MimeType string `json:"mime_type,omitempty" doc:"MIME-тип содержимого"`
}

type requestOutput struct {
	Body ticketResponse
}

type ticketResponse struct {
	UploadURL string    `json:"upload_url" doc:"Адрес для PUT содержимого"`
	PublicURL string    `json:"public_url" doc:"Адрес файла после загрузки"`
	ExpiresAt time.Time `json:"expires_at"`
}

type storeResponse struct {
	Status string `json:"status"`
	Size   int64  `json:"size"`
}
