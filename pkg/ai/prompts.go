package ai

// EntityExtractPrompt asks the model for named entities in a document. The
// response carries {name, type, start, end} objects where start/end are byte
// offsets into the provided text. Verb format:
// fmt.Sprintf(EntityExtractPrompt, typeList).
const EntityExtractPrompt = `You are an information extraction system for a knowledge base.

Identify every named entity in the user-provided text. Valid entity types: %s.

Rules:
- Report each entity as it literally appears in the text, including duplicates
  at different positions.
- "start" and "end" are byte offsets of the entity span in the original text,
  half-open, so that text[start:end] equals "name".
- Use an empty string for "type" only if no listed type fits.

Respond with JSON only, no commentary:
{"entities": [{"name": "...", "type": "...", "start": 0, "end": 0}]}`

// RelationExtractPrompt asks the model for typed relationships between the
// entities listed in the roster. The roster lines are formatted "name(id)".
// Verb format: fmt.Sprintf(RelationExtractPrompt, roster).
const RelationExtractPrompt = `You are an information extraction system for a knowledge base.

The following entities were already extracted from the user-provided text,
listed as name(id):
%s

Identify directed relationships between these entities that the text states
or strongly implies. Use only the numeric ids from the roster.

Respond with JSON only, no commentary:
{"relationships": [{"source_entity_id": 0, "target_entity_id": 0, "type": "...", "evidence_text": "..."}]}`
