// Package locations serves the static catalog of Moscow districts and
// popular football venues that backs the room-creation autocomplete.
package locations

import "strings"

var moscowDistricts = []string{
	"Академический", "Алексеевский", "Алтуфьевский", "Арбат", "Аэропорт",
	"Бабушкинский", "Басманный", "Беговой", "Бескудниковский", "Бибирево",
	"Бирюлёво Восточное", "Бирюлёво Западное", "Богородское", "Братеево", "Бутово Северное",
	"Бутово Южное", "Бутырский", "Вешняки", "Внуково", "Войковский",
	"Восточное Дегунино", "Восточное Измайлово", "Восточный", "Выхино-Жулебино", "Гагаринский",
	"Головинский", "Гольяново", "Даниловский", "Дмитровский", "Донской",
	"Дорогомилово", "Замоскворечье", "Западное Дегунино", "Зюзино", "Зябликово",
	"Ивановское", "Измайлово", "Капотня", "Коньково", "Коптево",
	"Косино-Ухтомский", "Котловка", "Красносельский", "Крылатское", "Кузьминки",
	"Кунцево", "Куркино", "Левобережный", "Лефортово", "Лианозово",
	"Ломоносовский", "Лосиноостровский", "Люблино", "Марфино", "Марьина Роща",
	"Марьино", "Метрогородок", "Мещанский", "Митино", "Можайский",
	"Молжаниновский", "Москворечье-Сабурово", "Нагатино-Садовники", "Нагатинский Затон", "Нагорный",
	"Некрасовка", "Нижегородский", "Новогиреево", "Новокосино", "Ново-Переделкино",
	"Обручевский", "Орехово-Борисово Северное", "Орехово-Борисово Южное", "Останкинский", "Отрадное",
	"Очаково-Матвеевское", "Перово", "Печатники", "Покровское-Стрешнево", "Преображенское",
	"Пресненский", "Проспект Вернадского", "Раменки", "Ростокино", "Рязанский",
	"Савёловский", "Свиблово", "Северное Измайлово", "Северное Медведково", "Северное Тушино",
	"Северный", "Сокол", "Соколиная Гора", "Сокольники", "Солнцево",
	"Строгино", "Таганский", "Тверской", "Текстильщики", "Тёплый Стан",
	"Тимирязевский", "Тропарёво-Никулино", "Филёвский Парк", "Фили-Давыдково", "Хамовники",
	"Ховрино", "Хорошёво-Мнёвники", "Хорошёвский", "Царицыно", "Черёмушки",
	"Чертаново Северное", "Чертаново Центральное", "Чертаново Южное", "Щукино", "Южное Медведково",
	"Южное Тушино", "Южнопортовый", "Якиманка", "Ярославский", "Ясенево",
}

var popularFootballVenues = []string{
	"Стадион Лужники", "Открытие Арена", "ВЭБ Арена", "РЖД Арена", "Стадион Динамо",
	"Спортивный комплекс ЦСКА", "Парк Горького", "Сокольники", "Измайловский парк", "Парк Победы",
	"Останкино", "Фили", "Крылатское", "Стадион Спартаковец", "Спортивный комплекс Олимпийский",
	"Петровский парк", "Черкизово", "Измайлово", "Сетунь", "Коломенское",
}

// All returns every known location, districts first.
func All() []string {
	out := make([]string, 0, len(moscowDistricts)+len(popularFootballVenues))
	out = append(out, moscowDistricts...)
	out = append(out, popularFootballVenues...)
	return out
}

// normalize lowercases, folds ё to е and collapses whitespace so "Тёплый
// стан" and "теплый  стан" compare equal.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}

// Search ranks locations against the query: whole-name prefix matches
// first, then word-prefix matches, then substring matches, then loose
// matches that tolerate a one-character typo at the edge of the query.
func Search(query string) []string {
	normalized := normalize(query)
	if normalized == "" {
		return nil
	}

	if len([]rune(normalized)) < 2 {
		var results []string
		for _, loc := range All() {
			for _, word := range strings.Fields(normalize(loc)) {
				if strings.HasPrefix(word, normalized) {
					results = append(results, loc)
					break
				}
			}
		}
		return dedupe(results)
	}

	var exact, wordStarts, contains, fuzzy []string

locations:
	for _, loc := range All() {
		nloc := normalize(loc)
		if nloc == normalized || strings.HasPrefix(nloc, normalized) {
			exact = append(exact, loc)
			continue
		}
		for _, word := range strings.Fields(nloc) {
			if strings.HasPrefix(word, normalized) {
				wordStarts = append(wordStarts, loc)
				continue locations
			}
		}
		if strings.Contains(nloc, normalized) {
			contains = append(contains, loc)
			continue
		}
		runes := []rune(normalized)
		if len(runes) >= 3 {
			// drop one character off either end of the query
			for _, part := range []string{string(runes[:len(runes)-1]), string(runes[1:])} {
				if len([]rune(part)) >= 2 && strings.Contains(nloc, part) {
					fuzzy = append(fuzzy, loc)
					break
				}
			}
		}
	}

	results := append(append(append(exact, wordStarts...), contains...), fuzzy...)
	return dedupe(results)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
