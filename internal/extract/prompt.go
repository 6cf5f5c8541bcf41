package extract

import (
	"fmt"
	"strings"
)

const systemInstruction = `You extract sales leads for a travel agency from WhatsApp conversations.
Respond with a raw JSON array and nothing else. Do not wrap it in Markdown code fences and do not add explanations.
Return [] when the conversation contains no leads.`

const extractionRules = `Extract every prospective customer (lead) from the conversation below.

For each lead return an object with these keys:
- name: the customer's name as written in the conversation.
- phone_number: the customer's phone number. Prefer it as the identifier of a lead, but it may be missing; use "Not available" when no number is given.
- destination: where the customer wants to travel. If several destinations belong to the same customer, join them with " - " (for example "Istanbul - Cappadocia"). Use "Not specified" when unknown.
- status: always "New Lead".
- price: the quoted or discussed price. If several services were priced, concatenate them into one string (for example "Hotel 200€ + Transfer 50€"). Use "Not discussed" when no price came up.
- services: optional. The services the customer asked about (hotel, flight, transfer, tour), comma separated.

Merge messages that clearly belong to the same customer into one lead.`

func buildPrompt(text string, chunkIndex, totalChunks int) string {
	var b strings.Builder
	b.WriteString(extractionRules)
	b.WriteString("\n\n")
	if totalChunks > 1 {
		fmt.Fprintf(&b, "This is part %d of %d of a longer conversation. Extract only the leads that appear in this part.\n\n",
			chunkIndex+1, totalChunks)
	}
	b.WriteString("Conversation:\n")
	b.WriteString(text)
	return b.String()
}
