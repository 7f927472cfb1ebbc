package taxonomy

// Seed defines a tag for seeding the default taxonomy.
// Display metadata is only set on categories.
type Seed struct {
	Name        string
	NameLv      string
	ColorKey    string
	Icon        string
	Description string
	Children    []Seed
}

// DefaultTaxonomy is the starting category > domain > tag tree.
// Moderators extend it through suggestions and tag management.
var DefaultTaxonomy = []Seed{
	{
		Name:        "Sports",
		NameLv:      "Sports",
		ColorKey:    "orange",
		Icon:        "trophy",
		Description: "Team games, individual training and everything that gets you moving.",
		Children: []Seed{
			{
				Name: "Ball Games", NameLv: "Bumbu spēles",
				Children: []Seed{
					{Name: "Basketball", NameLv: "Basketbols"},
					{Name: "Football", NameLv: "Futbols"},
					{Name: "Volleyball", NameLv: "Volejbols"},
					{Name: "Floorball", NameLv: "Florbols"},
				},
			},
			{
				Name: "Winter Sports", NameLv: "Ziemas sporta veidi",
				Children: []Seed{
					{Name: "Ice Hockey", NameLv: "Hokejs"},
					{Name: "Cross-country Skiing", NameLv: "Distanču slēpošana"},
				},
			},
			{
				Name: "Fitness", NameLv: "Fitness",
				Children: []Seed{
					{Name: "Running", NameLv: "Skriešana"},
					{Name: "Yoga", NameLv: "Joga"},
					{Name: "Cycling", NameLv: "Riteņbraukšana"},
				},
			},
		},
	},
	{
		Name:        "Outdoors",
		NameLv:      "Daba",
		ColorKey:    "green",
		Icon:        "tree",
		Description: "Hiking, gardening and time spent outside.",
		Children: []Seed{
			{
				Name: "Hiking", NameLv: "Pārgājieni",
				Children: []Seed{
					{Name: "Bog Walks", NameLv: "Purva takas"},
					{Name: "Trail Running", NameLv: "Taku skriešana"},
				},
			},
			{
				Name: "Gardening", NameLv: "Dārzkopība",
				Children: []Seed{
					{Name: "Vegetable Gardening", NameLv: "Dārzeņu audzēšana"},
					{Name: "Mushroom Picking", NameLv: "Sēņošana"},
				},
			},
		},
	},
	{
		Name:        "Culture",
		NameLv:      "Kultūra",
		ColorKey:    "purple",
		Icon:        "palette",
		Description: "Music, books, theatre and crafts.",
		Children: []Seed{
			{
				Name: "Music", NameLv: "Mūzika",
				Children: []Seed{
					{Name: "Choir Singing", NameLv: "Kora dziedāšana"},
					{Name: "Jazz", NameLv: "Džezs"},
				},
			},
			{
				Name: "Literature", NameLv: "Literatūra",
				Children: []Seed{
					{Name: "Book Club", NameLv: "Grāmatu klubs"},
					{Name: "Poetry", NameLv: "Dzeja"},
				},
			},
			{
				Name: "Crafts", NameLv: "Rokdarbi",
				Children: []Seed{
					{Name: "Knitting", NameLv: "Adīšana"},
					{Name: "Pottery", NameLv: "Keramika"},
				},
			},
		},
	},
	{
		Name:        "Games",
		NameLv:      "Spēles",
		ColorKey:    "blue",
		Icon:        "dice",
		Description: "Board games, video games and puzzles.",
		Children: []Seed{
			{
				Name: "Tabletop", NameLv: "Galda spēles",
				Children: []Seed{
					{Name: "Chess", NameLv: "Šahs"},
					{Name: "Board Games", NameLv: "Galda spēļu vakari"},
				},
			},
			{
				Name: "Video Games", NameLv: "Videospēles",
				Children: []Seed{
					{Name: "Esports", NameLv: "E-sports"},
				},
			},
		},
	},
}
