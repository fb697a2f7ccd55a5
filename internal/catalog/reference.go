package catalog

import "github.com/hitoshi/learnhub/internal/model"

func price(v float64) *float64 { return &v }

// referenceCourses は同梱の参照データセット。
// リモートのカタログが取得できない場合に宣言順のまま返す。
// リモートの初期データ（000006_seed_courses）と同じ内容を保つこと。
var referenceCourses = []model.Course{
	{
		ID:            "1",
		Title:         "Complete Web Development Bootcamp",
		Description:   "Learn HTML, CSS, JavaScript, React, and Node.js from scratch to advanced concepts.",
		Instructor:    "Sarah Johnson",
		Category:      "web development",
		Price:         89.99,
		OriginalPrice: price(129.99),
		Rating:        4.8,
		Reviews:       1247,
		Duration:      "45 hours",
		Lessons:       156,
		Image:         "https://images.unsplash.com/photo-1461749280684-dccba630e2f6?w=400&h=300&fit=crop",
		Objectives: []string{
			"Build responsive websites from scratch",
			"Master JavaScript ES6+ features",
			"Create dynamic web applications with React",
			"Develop full-stack applications with Node.js",
		},
		Curriculum: []model.Section{
			{
				Title: "HTML & CSS Fundamentals",
				Lessons: []model.Lesson{
					{Title: "Introduction to HTML", Duration: "15 min"},
					{Title: "CSS Layouts and Flexbox", Duration: "25 min"},
					{Title: "Responsive Design Principles", Duration: "20 min"},
				},
			},
			{
				Title: "JavaScript Mastery",
				Lessons: []model.Lesson{
					{Title: "Variables and Data Types", Duration: "18 min"},
					{Title: "Functions and Scope", Duration: "22 min"},
					{Title: "ES6+ Features", Duration: "30 min"},
				},
			},
		},
	},
	{
		ID:            "2",
		Title:         "Mobile App Development with React Native",
		Description:   "Build cross-platform mobile applications using React Native and modern JavaScript.",
		Instructor:    "Michael Chen",
		Category:      "mobile development",
		Price:         79.99,
		OriginalPrice: price(99.99),
		Rating:        4.7,
		Reviews:       892,
		Duration:      "38 hours",
		Lessons:       142,
		Image:         "https://images.unsplash.com/photo-1512941937669-90a1b58e7e9c?w=400&h=300&fit=crop",
		Objectives: []string{
			"Build native mobile apps for iOS and Android",
			"Master React Native components and navigation",
			"Integrate with backend APIs and databases",
			"Deploy apps to app stores",
		},
		Curriculum: []model.Section{
			{
				Title: "React Native Basics",
				Lessons: []model.Lesson{
					{Title: "Setting up React Native", Duration: "20 min"},
					{Title: "Components and Props", Duration: "25 min"},
					{Title: "State Management", Duration: "30 min"},
				},
			},
		},
	},
	{
		ID:            "3",
		Title:         "Data Science and Machine Learning",
		Description:   "Master Python, statistics, and machine learning algorithms for data analysis.",
		Instructor:    "Dr. Emily Rodriguez",
		Category:      "data science",
		Price:         119.99,
		OriginalPrice: price(149.99),
		Rating:        4.9,
		Reviews:       2156,
		Duration:      "52 hours",
		Lessons:       203,
		Image:         "https://images.unsplash.com/photo-1551288049-bebda4e38f71?w=400&h=300&fit=crop",
		Objectives: []string{
			"Analyze data using Python and pandas",
			"Build machine learning models",
			"Visualize data with matplotlib and seaborn",
			"Deploy ML models to production",
		},
		Curriculum: []model.Section{
			{
				Title: "Python for Data Science",
				Lessons: []model.Lesson{
					{Title: "Python Basics", Duration: "30 min"},
					{Title: "Pandas Data Manipulation", Duration: "45 min"},
					{Title: "Data Visualization", Duration: "35 min"},
				},
			},
		},
	},
}

// ReferenceCourses は同梱の参照データセットのコピーを返す。
func ReferenceCourses() []model.Course {
	out := make([]model.Course, len(referenceCourses))
	for i, c := range referenceCourses {
		out[i] = c.Clone()
	}
	return out
}
