package source

import "testing"

func TestParseBlobs(t *testing.T) {
	blobs := []blob{
		{ // regular group message with full attribution
			PrePlain:  "[18:05, 11/10/2025] Dana Levy: ",
			Text:      "Looking for 2 players tonight at 19:00, level C1",
			InnerText: "Dana Levy\nLooking for 2 players tonight at 19:00, level C1\n18:05",
		},
		{ // own message, must be dropped
			Outgoing:  true,
			Text:      "count me in!",
			InnerText: "count me in!\n18:06",
		},
		{ // media-only message, no text, dropped
			PrePlain:  "[18:10, 11/10/2025] Yoav: ",
			InnerText: "",
		},
		{ // unknown sender with a phone chip
			PhoneButton: "+972 52-123-4567",
			Text:        "מחפשים רביעי לערב, רמה 4",
			InnerText:   "+972 52-123-4567\nמחפשים רביעי לערב, רמה 4\n20:15",
		},
	}

	msgs := parseBlobs(blobs)
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}

	first := msgs[0]
	if first.Sender != "Dana Levy" {
		t.Errorf("sender: %q", first.Sender)
	}
	if first.Timestamp != "18:05" {
		t.Errorf("timestamp: %q", first.Timestamp)
	}
	if first.Phone != "N/A" {
		t.Errorf("phone: %q", first.Phone)
	}

	second := msgs[1]
	if second.Phone != "+972521234567" {
		t.Errorf("phone chip not normalized: %q", second.Phone)
	}
	if second.Timestamp != "20:15" {
		t.Errorf("timestamp: %q", second.Timestamp)
	}
	if second.Text != "מחפשים רביעי לערב, רמה 4" {
		t.Errorf("RTL text mangled: %q", second.Text)
	}
}

func TestExtractSender(t *testing.T) {
	cases := []struct {
		name string
		b    blob
		want string
	}{
		{
			"pre-plain-text attribution",
			blob{PrePlain: "[09:12, 01/03/2026] Noa Bar: "},
			"Noa Bar",
		},
		{
			"numeric attribution is not a name",
			blob{PrePlain: "[09:12, 01/03/2026] +972 52-123-4567: ",
				Text:      "hello there",
				InnerText: "+972 52-123-4567\nhello there\n09:12"},
			"Unknown",
		},
		{
			"line scan skips timestamps and numbers",
			blob{InnerText: "09:12\n0521234567\nGadi K\nsome message body text here is long enough"},
			"Gadi K",
		},
		{
			"nothing plausible",
			blob{InnerText: "10:01\n123"},
			"Unknown",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractSender(&tc.b); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractTimestamp(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Dana\nmessage body\n18:05", "18:05"},
		{"meet at 19:00 ok?\n18:05", "18:05"}, // last match wins: render order puts send time after body
		{"[9:05] something", "9:05"},
		{"no time here", "Unknown"},
	}
	for _, tc := range cases {
		if got := extractTimestamp(tc.in); got != tc.want {
			t.Errorf("extractTimestamp(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExtractPhoneFromBody(t *testing.T) {
	cases := []struct {
		name, text, want string
	}{
		{"intl format", "call me +972-52-123-4567 tonight", "+972521234567"},
		{"local format", "my number 052-123-4567", "0521234567"},
		{"bare ten digits", "reach 0521234567 anytime", "0521234567"},
		{"no number", "see you at the court", "N/A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := blob{}
			if got := extractPhone(&b, tc.text); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
