package http

import (
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

var bandColors = map[domain.Band]string{
	domain.BandHigh:         "#D32F2F",
	domain.BandModerateHigh: "#FFA500",
	domain.BandModerate:     "#FFC107",
	domain.BandLow:          "#4CAF50",
}

func bandColor(b domain.Band) string {
	if c, ok := bandColors[b]; ok {
		return c
	}
	return "#BDBDBD"
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"bandColor": bandColor,
	"fixed2":    func(x float64) string { return strconv.FormatFloat(x, 'f', 2, 64) },
}).Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Risco de alagamento em Recife - {{.Date}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
th, td { padding: .3rem .8rem; border: 1px solid #ddd; text-align: right; }
td.text { text-align: left; }
</style>
</head>
<body>
<h1>Risco de alagamento em Recife</h1>
<form method="get" action="/"><input type="date" name="date" value="{{.Date}}"> <button type="submit">Ver</button></form>
<form method="post" action="/api/refresh"><input type="hidden" name="date" value="{{.Date}}"><button type="submit">Atualizar dados</button></form>
<p>Atualizado em {{.GeneratedAt}}</p>
{{if .Records}}
<table>
<tr><th>Hora</th><th>Estação</th><th>VP</th><th>AM</th><th>Risco</th><th>Classificação</th></tr>
{{range .Records}}<tr style="background-color: {{bandColor .Band}}">
<td class="text">{{.HourRef}}</td><td class="text">{{.StationName}}</td><td>{{fixed2 .VP}}</td>
{{if .Band}}<td>{{fixed2 .AM}}</td><td>{{fixed2 .RiskValue}}</td><td class="text">{{.Band}}</td>{{else}}<td></td><td></td><td class="text">sem maré</td>{{end}}
</tr>
{{end}}</table>
{{else}}
<p>Nenhum registro de risco para {{.Date}}.</p>
{{end}}
</body>
</html>
`))

type pageData struct {
	Date        string
	GeneratedAt string
	Records     []domain.RiskRecord
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	date, ok := s.queryDate(w, r)
	if !ok {
		return
	}
	records, err := s.dashboard.Risk(r.Context(), date)
	if err != nil {
		s.logger.Error("risk query failed", "error", err)
		http.Error(w, "risk table unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{
		Date:        date.Format(domain.DateLayout),
		GeneratedAt: domain.Now().In(domain.Recife).Format(time.DateTime),
		Records:     records,
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("render dashboard page", "error", err)
	}
}
