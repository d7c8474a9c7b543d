package itinerary

import (
	"fmt"
	"unicode/utf8"
)

const DefaultMaxTranscriptChars = 15000

const promptTemplate = `Create a detailed day-by-day travel itinerary based on the following transcript.
Return the response in raw JSON format with the following structure:
{
    "trip_title": "Title of the trip",
    "summary": "Brief summary of the trip",
    "days": [
        {
            "day_number": 1,
            "theme": "Theme of the day",
            "image_query": "A specific search query to find a beautiful image for this day (e.g. 'Eiffel Tower Paris', 'Colosseum Rome')",
            "activities": [
                {
                    "time": "Time of day (e.g., Morning, 10:00 AM)",
                    "activity": "Name of activity",
                    "description": "Description of activity"
                }
            ]
        }
    ]
}

Transcript: %s
`

// BuildPrompt embeds at most maxChars characters of transcript in the prompt.
func BuildPrompt(transcript string, maxChars int) string {
	return fmt.Sprintf(promptTemplate, truncate(transcript, maxChars))
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}
