package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/mydehq/anitrakt/internal/logger"
)

// htmlData is the template context for the HTML report.
type htmlData struct {
	Total     int
	Mapped    int
	Unmapped  int
	Rated     int
	Conflicts int
	Rows      []Row
	Generated string
}

// WriteHTML renders the review report as a single self-contained HTML page
// with client-side search and filtering.
func WriteHTML(rows []Row, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, HTMLFile)

	data := htmlData{
		Total:     len(rows),
		Rows:      rows,
		Generated: time.Now().Format("2006-01-02 15:04:05"),
	}
	for _, row := range rows {
		if row.Mapped {
			data.Mapped++
		} else {
			data.Unmapped++
		}
		if row.Rated {
			data.Rated++
		}
		if row.HasConflict {
			data.Conflicts++
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create HTML report: %w", err)
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to render HTML report: %w", err)
	}
	logger.Info("wrote HTML report", "path", path, "rows", len(rows))
	return path, nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>AniDB to Trakt Report</title>
<style>
:root {
  --bg: #1a1a2e; --card: #16213e; --fg: #eee; --muted: #888;
  --accent: #e94560; --ok: #4ade80; --warn: #fbbf24; --border: #333;
}
* { box-sizing: border-box; }
body {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
  background: var(--bg); color: var(--fg); margin: 0; padding: 20px; line-height: 1.5;
}
.container { max-width: 1400px; margin: 0 auto; }
h1 { color: var(--accent); margin-bottom: 10px; }
.stats { display: flex; gap: 20px; margin-bottom: 20px; flex-wrap: wrap; }
.stat { background: var(--card); padding: 15px 25px; border-radius: 8px; border-left: 4px solid var(--accent); }
.stat-value { font-size: 2em; font-weight: bold; color: var(--accent); }
.stat-label { color: var(--muted); font-size: 0.9em; }
.filters { background: var(--card); padding: 15px; border-radius: 8px; margin-bottom: 20px; display: flex; gap: 15px; flex-wrap: wrap; align-items: center; }
.filters label { display: flex; align-items: center; gap: 5px; cursor: pointer; }
.filters input[type="text"] { padding: 8px 12px; border: 1px solid var(--border); border-radius: 4px; background: var(--bg); color: var(--fg); width: 200px; }
table { width: 100%; border-collapse: collapse; background: var(--card); border-radius: 8px; overflow: hidden; }
th, td { padding: 12px; text-align: left; border-bottom: 1px solid var(--border); }
th { background: var(--bg); white-space: nowrap; }
tr:hover { background: rgba(233, 69, 96, 0.1); }
a { color: var(--accent); text-decoration: none; }
a:hover { text-decoration: underline; }
.links { display: flex; gap: 8px; }
.links a { padding: 2px 6px; background: var(--bg); border-radius: 4px; font-size: 0.85em; }
.status-synced, .status-mapped { color: var(--ok); }
.status-unmapped { color: var(--warn); }
.status-new { color: #60a5fa; }
.hidden { display: none; }
.generated { color: var(--muted); font-size: 0.9em; margin-top: 20px; text-align: center; }
</style>
</head>
<body>
<div class="container">
<h1>AniDB to Trakt Report</h1>
<div class="stats">
  <div class="stat"><div class="stat-value">{{.Total}}</div><div class="stat-label">Total Anime</div></div>
  <div class="stat"><div class="stat-value">{{.Mapped}}</div><div class="stat-label">Mapped</div></div>
  <div class="stat"><div class="stat-value">{{.Unmapped}}</div><div class="stat-label">Unmapped</div></div>
  <div class="stat"><div class="stat-value">{{.Rated}}</div><div class="stat-label">With Ratings</div></div>
  <div class="stat"><div class="stat-value">{{.Conflicts}}</div><div class="stat-label">Conflicts</div></div>
</div>
<div class="filters">
  <input type="text" id="search" placeholder="Search titles..." oninput="filterTable()">
  <label><input type="checkbox" id="f-mapped" checked onchange="filterTable()"> Mapped</label>
  <label><input type="checkbox" id="f-unmapped" checked onchange="filterTable()"> Unmapped</label>
  <label><input type="checkbox" id="f-conflicts" onchange="filterTable()"> Conflicts Only</label>
  <label><input type="checkbox" id="f-rated" onchange="filterTable()"> Rated Only</label>
</div>
<table id="anime-table">
<thead><tr>
  <th>Title</th><th>Type</th><th>AniDB Rating</th><th>Trakt Rating</th>
  <th>Conflict</th><th>Episodes</th><th>Links</th><th>Status</th>
</tr></thead>
<tbody>
{{range .Rows}}<tr data-mapped="{{.Mapped}}" data-conflict="{{.HasConflict}}" data-rated="{{.Rated}}">
  <td>{{.Title}}</td>
  <td>{{.Type}}</td>
  <td>{{.LocalRating}}</td>
  <td>{{.RemoteRating}}</td>
  <td>{{.Conflict}}</td>
  <td>{{.Episodes}}</td>
  <td class="links">{{range .Links}}<a href="{{.URL}}" target="_blank">{{.Name}}</a>{{end}}</td>
  <td class="{{.StatusClass}}">{{.Status}}</td>
</tr>
{{end}}</tbody>
</table>
<p class="generated">Generated on {{.Generated}}</p>
</div>
<script>
function filterTable() {
  const search = document.getElementById('search').value.toLowerCase();
  const showMapped = document.getElementById('f-mapped').checked;
  const showUnmapped = document.getElementById('f-unmapped').checked;
  const conflictsOnly = document.getElementById('f-conflicts').checked;
  const ratedOnly = document.getElementById('f-rated').checked;
  document.querySelectorAll('#anime-table tbody tr').forEach(row => {
    const title = row.cells[0].textContent.toLowerCase();
    const mapped = row.getAttribute('data-mapped') === 'true';
    const conflict = row.getAttribute('data-conflict') === 'true';
    const rated = row.getAttribute('data-rated') === 'true';
    let show = true;
    if (search && !title.includes(search)) show = false;
    if (mapped && !showMapped) show = false;
    if (!mapped && !showUnmapped) show = false;
    if (conflictsOnly && !conflict) show = false;
    if (ratedOnly && !rated) show = false;
    row.classList.toggle('hidden', !show);
  });
}
</script>
</body>
</html>
`))
