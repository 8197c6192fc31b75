package prompt

// ChatSystem is the system message for every chat turn.
const ChatSystem = `You are a helpful AI assistant. Consider the chat history and any attached files to provide relevant and coherent responses. If a file is attached, analyze its content thoroughly, paying close attention to its original language.`

// ChatTurn frames the user's message with the attached file's summary.
const ChatTurn = `{{#if fileSummary}}
The user has attached a file, and here is a summary of its content:
{{{fileSummary}}}
{{/if}}

{{{message}}}`

// SummarizeDocument asks for a summary of extracted document text.
const SummarizeDocument = `Summarize the following document. Extract the key topics, arguments, and conclusions. The summary should be concise and easy to understand.
{{#if languageName}}
The document is written in {{languageName}}; write the summary in {{languageName}}.
{{/if}}
{{#if title}}
Title: {{title}}
{{/if}}
{{#if scanned}}
The text was recovered by OCR from a scanned document and may contain recognition errors.
{{/if}}

<document>
{{{text}}}
</document>`

// SummarizeChunk summarizes one part of a long document.
const SummarizeChunk = `The following is part {{part}} of {{total}} of a longer document. Summarize this part, keeping every key fact, name, figure and conclusion. Write the summary in {{languageName}}.

<document_part>
{{{text}}}
</document_part>`

// MergeSummaries combines per-part summaries into one.
const MergeSummaries = `The following are summaries of consecutive parts of one document. Combine them into a single concise summary covering the key topics, arguments, and conclusions. Write the summary in {{languageName}}.

{{{summaries}}}`

// SummarizeAttachment accompanies a file sent to the model as an attachment.
const SummarizeAttachment = `Summarize the attached document. Extract the key topics, arguments, and conclusions. The summary should be concise and easy to understand. Write the summary in the document's original language.`
