package mcpserver

// ExportFormatContract describes the canonical JSON export document
// that LLM consumers should follow when producing files for import.
const ExportFormatContract = `# Noteforge Export Format Contract

Every export file produced or consumed by Noteforge MUST follow this
structure.

## Structure

` + "```" + `json
{
  "app": "Noteforge",
  "version": 1,
  "notes": [
    {
      "id": 42,
      "title": "Weekly standup",
      "body": "Markdown body text",
      "tags": "meeting-notes,project-x",
      "created_at": "2025-01-20T09:00:00Z",
      "updated_at": "2025-01-20T09:30:00Z"
    }
  ]
}
` + "```" + `

## Rules

1. **` + "`" + `app` + "`" + ` must be exactly ` + "`" + `"Noteforge"` + "`" + `.** Files from other
   applications are rejected whole.
2. **` + "`" + `version` + "`" + ` must be ` + "`" + `1` + "`" + `.** Any other value aborts the import
   before a single note is touched.
3. **` + "`" + `notes` + "`" + ` is required.** An empty list is valid and imports nothing.
4. **` + "`" + `id` + "`" + ` is optional.** When present and already known, the entry is
   merged: the incoming note wins only if its ` + "`" + `updated_at` + "`" + ` is strictly
   newer. When absent or unknown, the note is inserted under a fresh id;
   ids from the file are never reused for new rows.
5. **` + "`" + `updated_at` + "`" + ` is required** per note, RFC 3339 format. An entry
   without it is skipped and reported, but does not abort the batch.
6. **` + "`" + `created_at` + "`" + ` is optional** and defaults to ` + "`" + `updated_at` + "`" + `.
7. **` + "`" + `tags` + "`" + ` is a single comma-separated string**, lowercase,
   kebab-case (e.g. ` + "`" + `project-x,meeting-notes` + "`" + `).
8. **Encoding** is UTF-8.
`
