/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package category

import (
	"fmt"
	"maps"
)

// Attribute hints. Leaves of an attribute template describe the expected
// value rather than holding one.
const (
	hintBool   = "true/false"
	hintNumber = "number"
)

// attributeTemplates are the nested shapes the vision model fills when
// describing an image. Reference entries carry the same shapes as metadata,
// so the similarity walk compares like with like.
var attributeTemplates = map[string]map[string]any{
	ExcelTable: {
		"struktur_merkmale": map[string]any{"hat_tabelle": hintBool, "spalten_ca": hintNumber, "zeilen_ca": hintNumber, "hat_header": hintBool},
		"visuell":           map[string]any{"farben": "gruen/blau/grau/bunt", "gridlines": hintBool, "lesbarkeit": "gut/mittel/schlecht"},
		"inhalt":            map[string]any{"hat_formeln": hintBool, "hat_summen": hintBool, "hat_diagramm": hintBool},
		"sap_typ":           map[string]any{"interface": hintBool, "export_typ": "BW/Excel/Roh", "kontext": "Financial/Logistik/HR/Unbekannt"},
	},
	DataFlow: {
		"struktur":     map[string]any{"knoten_anzahl": hintNumber, "verbindungen": hintNumber, "richtung": "horizontal/vertikal/komplex", "hierarchisch": hintBool},
		"technik":      map[string]any{"symbole_standard": hintBool, "beschriftung_klar": hintBool, "pfeile_klar": hintBool},
		"sap_elemente": map[string]any{"datasource": hintBool, "transformation": hintBool, "target": hintBool, "dtp": hintBool},
		"komplexitaet": map[string]any{"einfach": hintBool, "mittel": hintBool, "komplex": hintBool},
	},
	DataTransferProcess: {
		"prozess":       map[string]any{"quelle_klar": hintBool, "ziel_klar": hintBool, "transformation": hintBool, "fehlerbehandlung": hintBool},
		"konfiguration": map[string]any{"update_typ": "Full/Delta/Unbekannt", "package_size": hintBool, "parallel": hintBool},
		"monitoring":    map[string]any{"status_info": hintBool, "logs": hintBool, "performance": hintBool},
		"sap_standard":  map[string]any{"layout_standard": hintBool, "terminologie": hintBool},
	},
	Transformation: {
		"mapping":       map[string]any{"input_felder": hintNumber, "output_felder": hintNumber, "mapping_linien": hintBool, "regeln_sichtbar": hintBool},
		"logik":         map[string]any{"berechnungen": hintBool, "lookups": hintBool, "konstanten": hintBool, "bedingungen": hintBool},
		"technik":       map[string]any{"abap_code": hintBool, "standard_routinen": hintBool, "custom": hintBool},
		"dokumentation": map[string]any{"beschreibungen": hintBool, "kommentare": hintBool},
	},
	DataSource: {
		"quelle":      map[string]any{"typ": "R3/File/DB/API", "struktur": hintBool, "feld_anzahl": hintNumber, "technische_namen": hintBool},
		"metadaten":   map[string]any{"beschreibungen": hintBool, "datentypen": hintBool, "keys": hintBool},
		"verbindung":  map[string]any{"parameter": hintBool, "delta": hintBool},
		"integration": map[string]any{"standard_connector": hintBool, "custom_extractor": hintBool},
	},
	InfoObject: {
		"objekt":       map[string]any{"typ": "InfoCube/DSO/CompositeProvider/ADO", "struktur": hintBool, "hierarchie": hintBool},
		"modellierung": map[string]any{"key_felder": hintBool, "data_felder": hintBool, "time": hintBool},
		"performance":  map[string]any{"partitions": hintBool, "indizes": hintBool, "aggregation": hintBool},
		"verwendung":   map[string]any{"reporting": hintBool, "analytik": hintBool},
	},
}

// AttributeTemplate returns a copy of the attribute shape for a category.
func AttributeTemplate(name string) (map[string]any, error) {
	t, ok := attributeTemplates[name]
	if !ok {
		return nil, fmt.Errorf("unknown category %q", name)
	}
	return deepCopy(t), nil
}

func deepCopy(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for k, v := range out {
		if nested, ok := v.(map[string]any); ok {
			out[k] = deepCopy(nested)
		}
	}
	return out
}
