package llm

import "strings"

// BuildSystemPrompt composes the fixed instruction set for the extraction
// model: how to undo typical OCR breakage, how to read split lines back
// together, and the glossary of the trickier schema fields. The documents are
// Ecuadorian vehicle invoices, so the instruction stays in Spanish.
func BuildSystemPrompt() string {
	parts := []string{
		"Eres un asistente que extrae datos estructurados de facturas vehiculares.",
		"Responde únicamente con JSON válido que coincida con el esquema dado; cada clave del esquema debe estar presente.",
		"Utiliza null cuando la información no esté presente en el documento. Nunca inventes valores.",

		// OCR noise repair
		"El texto puede provenir de OCR: corrige confusiones típicas de caracteres (cero/O, uno/l) cuando el contexto lo haga evidente.",
		"El OCR puede insertar saltos de línea inesperados que parten un campo en dos. " +
			"Ejemplo: 'MODELO: V3 VAN' seguido más abajo de 'AC 1.5 4P 4X2 TM' corresponde a 'MODELO: V3 VAN AC 1.5 4P 4X2 TM'. " +
			"Lee todo el contenido antes de decidir cada campo; la continuación puede aparecer más adelante.",
		"Normaliza FECHA_DOCUMENTO al formato AAAA-MM-DD.",

		// field glossary
		"MARCA: el fabricante del vehículo.",
		"MODELO: siglas designadas por el fabricante.",
		"MOTOR: código de letras y números que identifica el motor, sin espacios.",
		"VIN_CHASIS: también aparece como 'Serie' o 'VIN', 17 caracteres, sin espacios.",
		"RAMV_CPN: aparece como RAMV o CPN, por ejemplo T00123456, sin espacios.",
		"AÑO: año de fabricación del vehículo.",
		"Los campos marcados 'sin espacios' deben entregarse sin espacios internos: 'T00 123 456' se convierte en 'T00123456'.",
		"Los montos (SUBTOTAL, IVA, TOTAL, DESCUENTO, SUBSIDIO) son números sin símbolo de moneda ni separador de miles.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages one text chunk. When page images accompany the
// request, the model is told the text is OCR support for the pixels.
func BuildUserPrompt(text string, imagesAttached bool) string {
	var b strings.Builder
	if imagesAttached {
		b.WriteString("Se adjunta la imagen del documento. El siguiente texto es el OCR de esa imagen, úsalo como apoyo de lectura:\n\n")
	}
	b.WriteString(text)
	return b.String()
}
