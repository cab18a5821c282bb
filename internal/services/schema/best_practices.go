package schema

// BestPracticesText is the implementation guidance attached to every audit result
const BestPracticesText = `Implementation Best Practices:

1. JSON-LD Markup (for crawlers): Place the full JSON-LD in a <script type="application/ld+json"> tag inside <head>. This is what Google, Bing, and other search engines read for rich results and knowledge graph entries.

2. Flattened Text (for vector search): Use the natural-language version of your structured data for embeddings and semantic retrieval (RAG pipelines, vector databases). This version contains the same information but in a format that embedding models understand well, with no JSON syntax, just descriptive sentences.

3. Keep Both in Sync: When you update your JSON-LD schema, regenerate the flattened text. They should always represent the same underlying data.

4. Avoid Duplicate Content: The flattened text can supplement your meta description or be placed in a semantically relevant location on the page, but do not create visible duplicate content blocks that would confuse users or trigger duplicate content issues.`
