package session

import (
	"fmt"
	"strings"
)

// BuildInstructions assembles the assistant system prompt from the resolved
// call context and a multi-day availability summary.
func BuildInstructions(cc *CallContext, availability string) string {
	var sb strings.Builder

	sb.WriteString("You are a warm, efficient scheduling assistant for a home healthcare service. ")
	sb.WriteString("You help patients schedule appointments with their assigned nurse. ")
	sb.WriteString("Keep answers short and conversational; this is a phone call. ")
	sb.WriteString("Confirm the date and time back to the patient before treating an appointment as booked.\n\n")

	if cc != nil && cc.Patient != nil {
		fmt.Fprintf(&sb, "You are speaking with %s.\n", cc.Patient.Name)
		if len(cc.Patient.MedicalConditions) > 0 {
			fmt.Fprintf(&sb, "Known conditions: %s.\n", strings.Join(cc.Patient.MedicalConditions, ", "))
		}
	} else {
		sb.WriteString("The caller is not yet registered; collect their name and offer to schedule a first visit.\n")
	}

	if cc != nil && cc.Nurse != nil {
		fmt.Fprintf(&sb, "Their nurse is %s", cc.Nurse.Name)
		if cc.Nurse.Specialization != "" {
			fmt.Fprintf(&sb, " (%s)", cc.Nurse.Specialization)
		}
		sb.WriteString(".\n")
	}

	if availability != "" {
		sb.WriteString("\nUpcoming availability:\n")
		sb.WriteString(availability)
		sb.WriteString("\nOnly offer times from this list.\n")
	}

	sb.WriteString("\nWhen the patient says goodbye or the appointment is settled, wrap up politely.")
	return sb.String()
}

// GreetingText is the first assistant utterance, held until the caller has
// spoken.
func GreetingText(cc *CallContext) string {
	if cc != nil && cc.Patient != nil {
		first := cc.Patient.Name
		if i := strings.IndexByte(first, ' '); i > 0 {
			first = first[:i]
		}
		return fmt.Sprintf("Hello %s! I'm your care scheduling assistant. How can I help you today?", first)
	}
	return "Hello! I'm your care scheduling assistant. How can I help you today?"
}
