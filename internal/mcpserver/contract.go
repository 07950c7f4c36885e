package mcpserver

// KnowlFormatContract describes the canonical knowl content format that
// LLM consumers should follow when creating or updating knowls.
const KnowlFormatContract = `# Knowl Format Contract

A knowl is a small, named, transcludable piece of knowledge. Every knowl
saved through this server MUST follow these rules.

## Identifier

- Lowercase letters, digits, dot, underscore, hyphen only: ` + "`" + `^[a-z0-9._-]+$` + "`" + `.
- The part before the first dot is the category (e.g. ` + "`" + `group.sylow` + "`" + ` is in
  category ` + "`" + `group` + "`" + `). Pick an existing category when one fits; see the
  ` + "`" + `list_categories` + "`" + ` tool.
- Identifiers are permanent. Other knowls reference them by name, so do
  not rename; save a new knowl instead.

## Content

Standard Markdown, plus three span families with special meaning:

1. **Math spans** are passed through to the page verbatim for client-side
   typesetting. Four forms: ` + "`" + `$...$` + "`" + `, ` + "`" + `$$...$$` + "`" + `, ` + "`" + `\(...\)` + "`" + `, ` + "`" + `\[...\]` + "`" + `.
   Markdown characters inside math (underscores, asterisks, brackets) are
   never reinterpreted, so write LaTeX normally: ` + "`" + `$x_1, \ldots, x_n$` + "`" + `.
2. **Knowl references** use double brackets: ` + "`" + `[[group.sylow]]` + "`" + `. They render
   as an embed box that loads the referenced knowl on demand. A
   double-bracket span that is not a valid identifier becomes a glossary
   wikilink instead.
3. **Hashtags** like ` + "`" + `#nilpotent` + "`" + ` become search links and make the knowl
   findable by tag. Tags need at least two characters after the ` + "`" + `#` + "`" + `.

## Quality

One of ` + "`" + `beta` + "`" + ` (default, freshly written), ` + "`" + `ok` + "`" + ` (checked by the author),
` + "`" + `reviewed` + "`" + ` (checked by someone else). Only claim ` + "`" + `reviewed` + "`" + ` when that
actually happened.

## Example

` + "```" + `markdown
Let $G$ be a finite #group and $p$ a prime dividing $|G|$. A Sylow
$p$-subgroup of $G$ is a subgroup of order $p^k$ where $p^k \mid |G|$
and $p^{k+1} \nmid |G|$.

See also [[group.lagrange]].
` + "```" + `
`
