package pii

import "strings"

// luhnValid implements the Luhn checksum used to validate credit card
// numbers.
func luhnValid(digits string) bool {
	sum := 0
	alt := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// ssnValid rejects SSNs that are syntactically well-formed but known
// invalid: area 000/666/9xx, group 00, or serial 0000.
func ssnValid(digits string) bool {
	if len(digits) != 9 {
		return false
	}
	area := digits[0:3]
	group := digits[3:5]
	serial := digits[5:9]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}

// ibanValid implements the IBAN mod-97 checksum: move the first four
// characters to the end, convert letters to numbers (A=10..Z=35), and
// verify the resulting number mod 97 equals 1.
func ibanValid(iban string) bool {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(iban) < 15 {
		return false
	}
	rearranged := iban[4:] + iban[:4]

	var numeric strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			numeric.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			numeric.WriteString(itoa(int(r-'A') + 10))
		default:
			return false
		}
	}

	remainder := 0
	for _, r := range numeric.String() {
		remainder = (remainder*10 + int(r-'0')) % 97
	}
	return remainder == 1
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}

// routingValid implements the ABA routing-number checksum: a
// 3-7-1-weighted sum of the nine digits must be divisible by 10.
func routingValid(digits string) bool {
	if len(digits) != 9 {
		return false
	}
	weights := [9]int{3, 7, 1, 3, 7, 1, 3, 7, 1}
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	return sum%10 == 0
}
