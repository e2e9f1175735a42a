package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) Capabilities(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Pipeline.Capabilities())
}

type styleView struct {
	Style string `json:"style"`
	Label string `json:"label"`
}

func (a *App) Styles(w http.ResponseWriter, r *http.Request) {
	list := a.Pipeline.Styles()
	out := make([]styleView, 0, len(list))
	for _, s := range list {
		out = append(out, styleView{Style: string(s.Style), Label: s.Label})
	}
	a.json(w, http.StatusOK, map[string]any{"styles": out})
}
