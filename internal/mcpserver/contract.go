package mcpserver

// NoteFormat describes the notes the pipeline generates so that LLM
// clients can navigate the vault without guessing.
const NoteFormat = `# Vault Note Format

The vault is generated from video transcripts. Notes are rewritten by the
pipeline; edit them in Obsidian only if you accept that the next run may
replace your changes in video notes.

## Layout

` + "```" + `text
Sources/YouTube/<channel>/<channel>.md          channel index note
Sources/YouTube/<channel>/Videos/<title>.md     one note per video
Concepts/<name>.md                              one shared note per concept
` + "```" + `

Channel, title and concept names are sanitized for the file system:
characters invalid on common platforms are removed and long names are
truncated.

## Kinds

The frontmatter ` + "`" + `type` + "`" + ` key tells the kind of a note.

| type            | keys                                                                 |
|-----------------|----------------------------------------------------------------------|
| youtube_video   | video_id, title, channel, url, upload_date, created, updated, concepts, tags, status |
| concept         | name, created, updated, sources, tags                                |
| youtube_channel | name, url, created, updated, videos, tags                            |

## Links

- Links are Obsidian wikilinks: ` + "`" + `[[Goroutine]]` + "`" + `. The target is the note
  title, which is also the file stem.
- A video note links every concept it explains, in the ` + "`" + `concepts` + "`" + ` list and
  under the "Conceitos" heading.
- A concept note links every video that explains it in ` + "`" + `sources` + "`" + `.
- A channel note links every processed video in ` + "`" + `videos` + "`" + `.
- Concept and channel reference lists only grow. The first definition
  recorded for a concept is kept.

## Example

` + "```" + `markdown
---
type: concept
name: Goroutine
created: "2025-01-20T10:00:00"
updated: "2025-01-21T09:30:00"
sources:
  - '[[Intro to Go]]'
  - '[[Concurrency Patterns]]'
tags:
  - concept
---
# Goroutine

## Definicao

A lightweight thread managed by the Go runtime.

## Explicado em

- [[Intro to Go]]
- [[Concurrency Patterns]]
` + "```" + `
`
