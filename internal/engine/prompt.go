package engine

// LLM prompt templates, data only.

// ExplainConceptsPrompt asks for a structured concept explanation of a transcript.
// Args: transcript text.
const ExplainConceptsPrompt = `You are an expert content analyst. Analyze this video transcript and explain the core concepts in a clear, structured way.

Instructions:
- Do NOT simply summarize or repeat the transcript
- IDENTIFY and EXPLAIN the main concepts, ideas, and insights
- ORGANIZE your response with clear headings
- MAKE complex ideas accessible and understandable
- FOCUS on the "why" and "how" behind the concepts
- HIGHLIGHT key takeaways and practical implications

Transcript:
%s

Provide your analysis in this structure:
## Core Concept
[Main idea or theme in 1-2 sentences]

## Key Concepts Explained
[Detailed explanation of the main concepts, not a summary]

## Important Insights
[Key insights and deeper understanding points]

## Practical Takeaways
[What viewers should remember or apply]

## Why This Matters
[Broader significance and relevance]`
