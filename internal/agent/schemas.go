package agent

import "github.com/mark3labs/mcp-go/mcp"

func searchEmailsTool() mcp.Tool {
	return mcp.NewTool("search_emails",
		mcp.WithDescription("Search emails using semantic search. "+
			"Returns top matching emails with full citations (subject, sender, date, message_id, thread_id). "+
			"Use for questions like 'find emails about X' or 'what did Y say about Z'. "+
			"IMPORTANT: Always cite the returned message_id and thread_id in your response."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language search query"),
		),
		mcp.WithString("sender",
			mcp.Description("Optional sender filter (substring of the From header)"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of results to return (default: 5)"),
		),
	)
}

func getThreadTool() mcp.Tool {
	return mcp.NewTool("get_thread",
		mcp.WithDescription("Get full thread of emails by thread_id. "+
			"Returns all emails in chronological order with metadata. "+
			"Use when you need to see the full conversation flow."),
		mcp.WithString("thread_id",
			mcp.Required(),
			mcp.Description("Gmail thread ID"),
		),
	)
}

func triageRecentTool() mcp.Tool {
	return mcp.NewTool("triage_recent",
		mcp.WithDescription("Find recent emails that need replies. "+
			"Looks for keywords like 'please confirm', 'action required', 'urgent', etc. "+
			"Returns a ranked list with urgency scores."),
		mcp.WithNumber("days",
			mcp.Description("Number of days to look back (default: 1)"),
		),
		mcp.WithString("sender",
			mcp.Description("Optional sender filter (substring of the address)"),
		),
	)
}

func draftReplyTool() mcp.Tool {
	return mcp.NewTool("draft_reply",
		mcp.WithDescription("Generate a reply draft for an email thread. "+
			"Returns DRAFT ONLY - never sends automatically."),
		mcp.WithString("thread_id",
			mcp.Required(),
			mcp.Description("Gmail thread ID to reply to"),
		),
		mcp.WithString("tone",
			mcp.Description("Tone of the reply"),
			mcp.Enum("concise", "friendly", "formal", "professional"),
		),
	)
}

func mailboxStatsTool() mcp.Tool {
	return mcp.NewTool("mailbox_stats",
		mcp.WithDescription("Mailbox statistics: totals, unread, top senders and domains."),
	)
}
