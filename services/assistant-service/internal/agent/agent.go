package agent

import (
	"strconv"
	"strings"
	"time"

	"github.com/klinikflow/klinikflow/services/assistant-service/internal/render"
	"github.com/klinikflow/klinikflow/services/assistant-service/internal/storage"
)

// The assistant speaks Danish to Danish clinicians; prompt texts are part of
// the product behavior and stay verbatim.

const (
	historyTextLimit = 1200
	noteTextLimit    = 900
)

// Instructions returns the system role for a chat agent. Unknown ids report
// false so the handler can reject them.
func Instructions(agentID string) (string, bool) {
	switch strings.TrimSpace(agentID) {
	case "reasoner":
		return "Du er fysioterapeutisk ræsonneringsassistent. " +
			"Historikken kan indeholde input/svar fra andre agenter; brug det som kontekst, men hold dig til din rolle. " +
			"Svar kort og konkret med: hypoteser, tests, red flags og næste skridt.", true
	case "guidelines":
		return "Du er evidens- og guideline-assistent. " +
			"Historikken kan indeholde svar fra andre agenter; brug det som kontekst, men hold dig til din rolle. " +
			"Hvis info mangler: skriv hvilke data du mangler og foreslå hvad der skal afklares.", true
	case "planner":
		return "Du er forløbsplanlægger. " +
			"Historikken kan indeholde svar fra andre agenter; brug det som kontekst, men hold dig til din rolle. " +
			"Hvis brugeren beder om 'dagens træning', lav en konkret plan for i dag: varighed, øvelser, sæt/reps, tempo, pause, progression og stop-kriterier.", true
	default:
		return "", false
	}
}

// ActionPrompt instructs the model to answer with journal blocks for a named
// action instead of free chat.
const ActionPrompt = `Du er en fysioterapeutisk assistent. Du får et udkast til journal (draftText), patientkontekst og shared historik mellem agenter.
Du skal returnere JSON med:
{
  "text": "kort svar til brugeren",
  "blocks": [
    {"id": "block1", "title": "...", "text": "...", "defaultMode": "append"|"replace"}
  ]
}
Hvis du får actionId, så producer blocks der matcher actionId:
- journal_pack: 3 blocks (ræsonnering, plan/træning, guideline-check)
- soap: 1 block (SOAP-notat)
- missing: 1 block (Manglende data)
- redflags: 1 block (Safety/Røde flag)
- plan_check: 1 block (plan-review)
- dosage: 1 block (dosering/progression)
- patient_info: 1 block (kort patient-venlig tekst)
- today_training: 1 block (dagens træning)
- home_program: 1 block (hjemmeprogram + progression)
- next_appt: 1 block (næste aftale + begrundelse)

Feltet defaultMode skal være "append" som udgangspunkt; brug "replace" hvis block er et fuldt notat.`

// SummarizePrompt wraps the collected journal text in the summarization task.
func SummarizePrompt(journalText string) string {
	return `Du er en erfaren fysioterapeut.
Du får en række journalnoter for én patient. Lav en kort opsummering på DANSK til fysioterapeuten, som skal se patienten nu.
Strukturér svaret sådan:
1) Kort overblik
2) Nuværende problem og baggrund
3) Forløb indtil nu (vigtige ændringer/progression)
4) Hjemmeøvelser og adherence (hvis beskrevet)
5) Vigtige opmærksomhedspunkter (røde flag, psykosociale forhold, kontraindikationer)
Skriv i korte punkter, ingen patient-identificerbare detaljer ud over det, der står.

Journalnoter:
` + journalText
}

// SuggestPrompt is the system role for next-appointment interval suggestions;
// the model must answer as a JSON object.
const SuggestPrompt = `Du er en erfaren fysioterapeut, der hjælper med at planlægge næste kontroltid.

Du skal foreslå, hvor mange dage der bør gå til næste aftale ud fra:
- diagnose/tilstand,
- hvor i forløbet patienten er,
- og kort udvikling i symptomer (hvis det er beskrevet).

Retningslinjer (generelle, ikke juridisk bindende):
- Akutte og ustabile tilstande (fx nylig traume, udtalte smerter, nylig operation): ofte 1-3 dage.
- Subakutte tilstande: 3-7 dage.
- Stabile/kroniske tilstande med god egenmestring: 7-21 dage.
- Hvis der er røde flag / forværring, så anbefal tid meget hurtigt og nævn at lægekontakt kan være relevant.

Svar KUN i JSON med felterne:
{
  "recommendedIntervalDays": number,
  "clinicalRationale": string,
  "safetyNote": string
}`

const EmptyJournalSummary = "Der er endnu ingen journalindlæg for denne klient."

const SummaryFallback = "Kunne ikke generere opsummering."

// FormatJournalEntry renders one entry for the summarization prompt.
func FormatJournalEntry(e storage.JournalEntry) string {
	title := e.Title
	if title == "" {
		title = "Ingen titel"
	}
	date := e.DateISO
	if date == "" {
		date = e.CreatedAtISO
	}
	if date == "" {
		date = "ukendt"
	}
	return "Dato: " + date + "\nTitel: " + title + "\nNotat: " + e.Content
}

// FormatHistory renders the shared thread as attributed lines, long messages
// truncated.
func FormatHistory(messages []storage.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		who := "ASSISTANT(" + orUnknown(m.AgentID) + ")"
		if m.Role == "user" {
			who = "USER"
		}
		lines = append(lines, who+": "+truncate(m.Text, historyTextLimit))
	}
	return strings.Join(lines, "\n")
}

// ChatContext assembles the user-side prompt for chat mode from the client
// snapshot, recent journal notes and the shared history.
func ChatContext(client storage.ClientSnapshot, notes []storage.JournalEntry, history string, now time.Time) string {
	name := client.Name
	if name == "" {
		name = "Ukendt"
	}
	parts := []string{
		"ClientName: " + name,
		"Today: " + now.Format("02-01-2006"),
	}
	if goal := render.Display(client.Profile["goal"]); goal != "" {
		parts = append(parts, "Goal: "+goal)
	}

	noteLines := make([]string, 0, len(notes))
	for _, entry := range notes {
		if entry.Content == "" {
			continue
		}
		noteLines = append(noteLines, "- ["+strconv.Itoa(len(noteLines)+1)+"] "+truncate(entry.Content, noteTextLimit))
	}
	if len(noteLines) > 0 {
		parts = append(parts, "RecentJournal:\n"+strings.Join(noteLines, "\n"))
	}
	if history != "" {
		parts = append(parts, "SharedHistory:\n"+history)
	}
	return strings.Join(parts, "\n\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
