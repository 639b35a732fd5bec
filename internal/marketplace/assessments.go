package marketplace

// buildAssessmentTable returns the mechanic's-assessment string table
// spec.md §4.3 calls for: 5 entries per DNA tier (Lemon, Average, Workhorse,
// Legendary), fully authored per SPEC_FULL.md §C.4. spec.md names this a
// "50-entry table... 5 per sub-tier", which doesn't square with its own four
// named tiers (5×4=20, not 50); DESIGN.md records this as resolved in favor
// of the "5 per sub-tier" clause against the four tiers dnaTier() defines.
func buildAssessmentTable() [4][5]string {
	return [4][5]string{
		{ // Lemon
			"Something's fighting you under that hood. I wouldn't bet the harvest on it.",
			"Compression's uneven across the board. Could be a fluke, could be a pattern.",
			"This one's seen a lot of quick fixes. None of them stuck for long.",
			"I'd want a second opinion before you sign anything for this unit.",
			"Runs fine on the lot. Lots do. Ask me again in a season.",
		},
		{ // Average
			"Honest wear for the hours on it. Nothing hiding that I can find.",
			"A few things worth watching, nothing worth walking away over.",
			"Typical used equipment — maintain it and it'll maintain you.",
			"Seller kept basic records. Matches what I'm seeing underneath.",
			"No red flags. No green flags either. Solidly in the middle.",
		},
		{ // Workhorse
			"This one was looked after. Whoever had it before knew what they were doing.",
			"Tight tolerances everywhere I checked. I'd buy it myself.",
			"Low drama history as far as I can tell. Good bones.",
			"Runs like it's got another decade in it, easy.",
			"Better than the asking price suggests. Don't tell the seller I said that.",
		},
		{ // Legendary
			"In thirty years of doing this, you don't see many like it.",
			"Whatever factory this came off, I want their whole production run.",
			"I checked twice because I didn't believe the first reading.",
			"Buy it. Buy it today. Units like this don't sit on lots long.",
			"This is the one you tell your grandkids about.",
		},
	}
}
