package i18n

import "golang.org/x/text/language"

var messages = map[language.Tag]map[string]string{
	language.English: {
		"app_title":       "Wallplan",
		"subtitle":        "Wall design and analysis",
		"help":            "Upload a wall drawing (.png, .jpg or .pdf) to generate the 2D layout, calculations and block summary.",
		"upload_label":    "Upload wall image",
		"generate_button": "Generate layout",
		"language":        "Language",
		"calc_section":    "Calculation results",
		"wall_area":       "Wall area",
		"wall_volume":     "Wall volume",
		"mortar_volume":   "Mortar volume",
		"wall_weight":     "Wall weight",
		"block_summary":   "Block summary",
		"openings":        "Openings",
		"blocks":          "Blocks",
		"dimensions":      "Dimensions",
		"source":          "Source",
		"approximate":     "Approximate result: the wall was inferred from a single baseline.",
		"mode_fallback":   "Unknown mode %q, using manual input.",
		"opening":         "opening",
		"block":           "block",
		"side_left":       "left",
		"side_right":      "right",
		"side_top":        "top",
		"side_bottom":     "bottom",
		"total_price":     "Total price",

		"unsupported_format":   "This file type is not supported. Use PNG, JPEG or PDF.",
		"decode_error":         "The file could not be read.",
		"empty_document":       "The document has no pages.",
		"no_wall_found":        "No wall could be found in the drawing.",
		"out_of_bounds":        "An opening lies outside the wall.",
		"out_of_bounds_detail": "%s %d exceeds the %s wall boundary by %.2f",
		"invalid_dimensions":   "Wall dimensions must be positive numbers.",
		"invalid_input":        "The input is invalid.",
		"no_backend":           "The requested backend is not available in this build.",
		"internal_error":       "An internal error occurred.",
	},
	language.Serbian: {
		"app_title":       "Wallplan",
		"subtitle":        "Projektovanje i analiza zidova",
		"help":            "Učitaj crtež zida (.png, .jpg ili .pdf) da bi generisao 2D raspored, proračune i pregled blokova.",
		"upload_label":    "Učitaj sliku zida",
		"generate_button": "Generiši raspored",
		"language":        "Jezik",
		"calc_section":    "Rezultati proračuna",
		"wall_area":       "Površina zida",
		"wall_volume":     "Zapremina zida",
		"mortar_volume":   "Zapremina maltera",
		"wall_weight":     "Masa zida",
		"block_summary":   "Pregled blokova",
		"openings":        "Otvori",
		"blocks":          "Blokovi",
		"dimensions":      "Dimenzije",
		"source":          "Izvor",
		"approximate":     "Približan rezultat: zid je izveden iz jedne osnovne linije.",
		"mode_fallback":   "Nepoznat režim %q, koristi se ručni unos.",
		"opening":         "otvor",
		"block":           "blok",
		"side_left":       "levu",
		"side_right":      "desnu",
		"side_top":        "gornju",
		"side_bottom":     "donju",
		"total_price":     "Ukupna cena",

		"unsupported_format":   "Ovaj tip datoteke nije podržan. Koristi PNG, JPEG ili PDF.",
		"decode_error":         "Datoteka ne može da se pročita.",
		"empty_document":       "Dokument nema stranica.",
		"no_wall_found":        "Na crtežu nije pronađen zid.",
		"out_of_bounds":        "Otvor se nalazi izvan zida.",
		"out_of_bounds_detail": "%s %d prelazi %s ivicu zida za %.2f",
		"invalid_dimensions":   "Dimenzije zida moraju biti pozitivni brojevi.",
		"invalid_input":        "Unos nije ispravan.",
		"no_backend":           "Traženi modul nije dostupan u ovoj verziji.",
		"internal_error":       "Došlo je do interne greške.",
	},
}
