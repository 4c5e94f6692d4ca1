/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package category

func quarter(key, title string, checks ...string) Criterion {
	return Criterion{Key: key, Title: title, Max: 25, Checks: checks}
}

var standardCriteria = map[string][]Criterion{
	ExcelTable: {
		quarter("struktur_vergleich", "Structure", "tabellenstruktur_korrekt", "spalten_angemessen", "header_vorhanden"),
		quarter("visueller_vergleich", "Visual quality", "formatierung_angemessen", "lesbarkeit_gut", "professionell"),
		quarter("funktionale_elemente", "Functional elements", "formeln_korrekt", "berechnungen_richtig", "vollstaendig"),
		quarter("sap_kontext", "SAP context", "kontext_korrekt", "business_sinnvoll", "integration_erkennbar"),
	},
	DataFlow: {
		quarter("diagramm_vergleich", "Diagram structure", "struktur_logisch", "vollstaendiger_flow", "hierarchie_klar"),
		quarter("technische_umsetzung", "Technical execution", "symbole_korrekt", "verbindungen_klar", "beschriftung_lesbar"),
		quarter("sap_bw_korrektheit", "SAP BW correctness", "datasource_korrekt", "transformation_gezeigt", "target_definiert"),
		quarter("verstaendlichkeit", "Comprehensibility", "logik_nachvollziehbar", "fachlich_korrekt", "vollstaendig"),
	},
	DataTransferProcess: {
		quarter("prozess_vergleich", "Process", "quelle_ziel_klar", "schritte_vollstaendig", "fehlerbehandlung"),
		quarter("konfiguration", "Configuration", "parameter_korrekt", "update_modus_sinnvoll", "performance_aspekte"),
		quarter("monitoring", "Monitoring", "status_informationen", "logging_konzept", "nachvollziehbar"),
		quarter("sap_standard", "SAP standards", "terminologie_korrekt", "layout_standard", "business_kontext"),
	},
	Transformation: {
		quarter("mapping_vergleich", "Mapping", "vollstaendiges_mapping", "logische_zuordnung", "regeln_erkennbar"),
		quarter("business_logik", "Business logic", "berechnungen_korrekt", "lookups_implementiert", "bedingungen_richtig"),
		quarter("technische_umsetzung", "Technical execution", "implementierung_sauber", "standard_routinen", "fehlerbehandlung"),
		quarter("dokumentation", "Documentation", "beschreibungen_vorhanden", "nachvollziehbar", "vollstaendig"),
	},
	DataSource: {
		quarter("technische_definition", "Technical definition", "felder_definiert", "datentypen_korrekt", "struktur_logisch"),
		quarter("konfiguration", "Configuration", "parameter_gesetzt", "extractor_korrekt", "delta_aktiviert"),
		quarter("metadaten", "Metadata", "beschreibungen_vollstaendig", "bezeichnungen_sinnvoll", "dokumentation_ausreichend"),
		quarter("integration", "Integration", "system_anbindung", "datenqualitaet", "performance_optimiert"),
	},
	InfoObject: {
		quarter("query_struktur", "Query structure", "dimensionen_korrekt", "kennzahlen_sinnvoll", "filter_angemessen"),
		quarter("darstellung", "Presentation", "formatierung_professionell", "lesbarkeit_gut", "uebersichtlich"),
		quarter("fachliche_korrektheit", "Domain correctness", "business_logik", "berechnungen_richtig", "kontext_passend"),
		quarter("technische_umsetzung", "Technical execution", "performance_optimiert", "variablen_genutzt", "standard_konform"),
	},
}

// content is the criterion every custom rubric leads with.
var content = Criterion{
	Key:    "inhalt_aehnlichkeit",
	Title:  "Content similarity",
	Max:    50,
	Checks: []string{"daten_identisch", "werte_uebereinstimmung", "vollstaendigkeit", "logische_konsistenz"},
}

func custom(second, third Criterion) []Criterion {
	second.Max, third.Max = 17, 17
	return []Criterion{content, second, third, {
		Key:    "sap_standards",
		Title:  "SAP standards",
		Max:    16,
		Checks: []string{"kontext_korrekt", "business_logik", "integration"},
	}}
}

var customCriteria = map[string][]Criterion{
	ExcelTable: custom(
		Criterion{Key: "technische_struktur", Title: "Technical structure", Checks: []string{"tabellenaufbau", "spalten_struktur", "funktionen_verwendet"}},
		Criterion{Key: "format_darstellung", Title: "Format and presentation", Checks: []string{"formatierung", "lesbarkeit", "professionell"}},
	),
	DataFlow: custom(
		Criterion{Key: "diagramm_struktur", Title: "Diagram structure", Checks: []string{"knoten_korrekt", "verbindungen_korrekt", "fluss_logisch"}},
		Criterion{Key: "technische_umsetzung", Title: "Technical execution", Checks: []string{"symbole_korrekt", "beschriftung_lesbar", "professionell"}},
	),
	DataTransferProcess: custom(
		Criterion{Key: "prozess_konfiguration", Title: "Process configuration", Checks: []string{"quelle_ziel_korrekt", "parameter_korrekt", "update_modus"}},
		Criterion{Key: "technisches_setup", Title: "Technical setup", Checks: []string{"fehlerbehandlung", "monitoring", "performance"}},
	),
	Transformation: custom(
		Criterion{Key: "mapping_logik", Title: "Mapping logic", Checks: []string{"felder_zugeordnet", "regeln_korrekt", "vollstaendig"}},
		Criterion{Key: "technische_umsetzung", Title: "Technical execution", Checks: []string{"implementierung_sauber", "standard_routinen", "dokumentiert"}},
	),
	DataSource: custom(
		Criterion{Key: "technische_definition", Title: "Technical definition", Checks: []string{"felder_definiert", "datentypen_korrekt", "struktur_logisch"}},
		Criterion{Key: "konfiguration", Title: "Configuration", Checks: []string{"parameter_gesetzt", "extractor_korrekt", "delta_aktiviert"}},
	),
	InfoObject: custom(
		Criterion{Key: "query_struktur", Title: "Query structure", Checks: []string{"dimensionen_korrekt", "kennzahlen_sinnvoll", "filter_angemessen"}},
		Criterion{Key: "darstellung", Title: "Presentation", Checks: []string{"formatierung_professionell", "lesbarkeit_gut", "uebersichtlich"}},
	),
}
