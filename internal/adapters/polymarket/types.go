package polymarket

// rawTrade es un registro crudo de /trades tal cual lo devuelve la Data API.
// Se mantiene como mapa porque la API mezcla strings y números en los campos
// numéricos, y porque el registro completo se conserva en Trade.Details como
// raw_data para auditoría.
type rawTrade map[string]any
