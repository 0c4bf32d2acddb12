// Package domain turns Recife rain-gauge and tide data into an hourly flood
// risk table.
//
// # Data Sources
//
// Rainfall comes from the CEMADEN PED network (rede 11, sensor 10, state PE).
// The collector fetches each station's recent readings, converts the UTC
// "datahora" field to Recife civil time and appends them to one flat file per
// day, "chuva_recife_YYYY-MM-DD.csv". Tide heights come from a yearly table of
// hourly reference heights published as CSV.
//
// # Conventions
//
// Time:
//
//	All timestamps are Recife civil time, a fixed UTC-3 offset with no
//	daylight saving. Hour buckets cover [HH:00:00, HH+1:00:00) and are keyed
//	by the strings date ("2006-01-02") and hour_ref ("HH:00:00").
//
// Rainfall files:
//
//	Columns codestacao, cidade, nome, uf, datahora, valor. Older exports used
//	nomeEstacao and valorMedida; both spellings are accepted. The station
//	*name* (nome) identifies a station in the risk table.
//
// Tide files:
//
//	Either "Hora_Exata;Altura_m" with decimal commas, or "datahora,AM" (also
//	"altura") with decimal points. The format is chosen from the first
//	non-empty line. Lines starting with "<<", "==" or ">>" are leftovers of
//	unresolved merges and are discarded.
//
// # Precipitation Pressure (VP)
//
//	VP = 6 * rain(t-10min, t] + rain(t-2h, t]
//
// evaluated at the last reading of each hour. The first term scales the
// 10-minute depth to an hourly-equivalent rate; the second is the measured
// 2-hour accumulation. Both windows are trailing. Only readings of the
// target day are considered. An hour without readings has no VP record:
// missing data is not the same as no rain.
//
// # Risk
//
//	risk_value = round(VP * AM, 2)
//
//	  <30 Baixo | [30,50) Moderado | [50,100) Moderado Alto | >=100 Alto
//
// Boundaries belong to the upper band. Missing tide heights are zero-filled
// by default ([PolicyZeroFill]); [PolicyGap] leaves those records unclassified.
//
// # Archives
//
// Raw rainfall is unique on (station code, timestamp) and risk records on
// (date, hour_ref, station name). Merges keep the last record seen.
package domain
