package models

type Item struct {
	ID        string `json:"id"`
	ListID    string `json:"-"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}
