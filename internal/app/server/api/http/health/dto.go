package health

type Input struct{}

type Output struct {
	Body Response
}

type Response struct {
	Status string `json:"status" example:"OK" doc:"Состояние сервиса"`
	Time   string `json:"time" doc:"Время сервера, RFC 3339"`
}
